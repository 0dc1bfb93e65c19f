package config

// SERVER_YML is the dev-mode server config. No private key is set, so
// the server boots with an ephemeral signing key pair.
const SERVER_YML = `
rolodex:
  listener:
    port: 3000
  contacts:
    birthdayWindowDays: 7
    birthdayFormats:
      - "01/02/2006"
      - "January 2, 2006"

sqlite:
  passPhrase: passphrase
`
