package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkhalif/rolodex/colors"
	"github.com/mkhalif/rolodex/server/auth"
	"github.com/mkhalif/rolodex/server/models"
)

type RequestContextKey string

type DecodedJWT struct {
	Claims   *auth.TokenClaims
	ErrorMsg string
}

type ResponseWriterWithStatus struct {
	http.ResponseWriter
	Status int
}

func (r *ResponseWriterWithStatus) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		responseWriter := &ResponseWriterWithStatus{
			ResponseWriter: w,
			Status:         200,
		}

		defer func() {
			responseStatus := colors.Green(responseWriter.Status)
			if responseWriter.Status >= 400 {
				responseStatus = colors.Red(responseWriter.Status)
			}

			logg.Infof("%v %v %v %v",
				r.Method,
				r.URL.Path,
				responseStatus,
				colors.Yellow(fmt.Sprintf("[%v]", time.Since(start))))
		}()

		next.ServeHTTP(responseWriter, r)
	})
}

func initialContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")

		// Add decoded token to request context
		ctx := context.WithValue(r.Context(), RequestContextKey("decodedJWT"), decodeAndVerifyAuthToken(requestAuthToken(r)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// protectedRouteMiddleware rejects unauthenticated requests & resolves the
// acting user into the request context, so handlers never reach for any
// ambient "current user" state.
func protectedRouteMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)
		if decodedJWT.ErrorMsg != "" {
			writeResponse(w, ResponsePayload{Errors: []string{decodedJWT.ErrorMsg}}, http.StatusUnauthorized)
			return
		}

		user, err := models.FindUserBy("id", decodedJWT.Claims.Subject)
		if err != nil {
			// token subject no longer maps to an account
			writeResponse(w, ResponsePayload{Errors: []string{"invalid token provided"}}, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), RequestContextKey("currentUser"), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// requestAuthToken pulls the token from the Authorization header, falling
// back to the 'api_token' query parameter.
func requestAuthToken(r *http.Request) string {
	authHeaderValue := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeaderValue, "Bearer ") {
		return strings.TrimPrefix(authHeaderValue, "Bearer ")
	}

	return r.URL.Query().Get("api_token")
}

func decodeAndVerifyAuthToken(tokenString string) DecodedJWT {
	if tokenString == "" {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}

	tokenClaims, err := auth.DecodeJWT(tokenString, authKeyPair)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims}
}
