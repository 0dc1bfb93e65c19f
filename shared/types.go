package shared

type ServerConfig struct {
	Sqlite  SqliteConfig  `mapstructure:"sqlite" validate:"required"`
	Rolodex RolodexConfig `mapstructure:"rolodex" validate:"required"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase" validate:"required"`
}

type RolodexConfig struct {
	// PEM-encoded RSA private key used to sign auth tokens.
	// When empty in dev mode, an ephemeral key pair is generated on boot.
	PrivateKeyPem string         `mapstructure:"privateKeyPem"`
	Listener      ListenerConfig `mapstructure:"listener" validate:"required"`
	Contacts      ContactsConfig `mapstructure:"contacts"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

type ContactsConfig struct {
	// BirthdayWindowDays is how far forward (from "today") the
	// /birthdays view looks, by month/day. Defaults to 7.
	BirthdayWindowDays int `mapstructure:"birthdayWindowDays"`

	// BirthdayFormats are the accepted input layouts for contact
	// birthdays, in Go reference-time notation.
	BirthdayFormats []string `mapstructure:"birthdayFormats"`
}
