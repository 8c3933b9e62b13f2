package main

import (
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"os"
)

const adminUser = "admin"

var adminPass string

// setupAdminAuth decides the password for the manual-trigger endpoint.
// Without ADMIN_PASSWORD a random one is generated and printed once at
// startup.
func setupAdminAuth() {
	adminPass = os.Getenv("ADMIN_PASSWORD")
	if adminPass == "" {
		adminPass = generateRandomPassword(16)
		log.Printf("[I] [Admin] ADMIN_PASSWORD not set, generated one for this run: %s", adminPass)
	}
}

func basicAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()

		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(adminUser)) != 1 || subtle.ConstantTimeCompare([]byte(pass), []byte(adminPass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, "Unauthorized.")
			return
		}

		handler(w, r)
	}
}
