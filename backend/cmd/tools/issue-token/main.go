// issue-token signs an access token with the api's jwt key. Accounts live in
// the identity provider, this is for local development and bots.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/itchan-dev/itchat/shared/config"
	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/jwt"
)

func main() {
	var (
		configFolder string
		uid          int64
		username     string
		admin        bool
	)
	flag.StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")
	flag.Int64Var(&uid, "uid", 0, "user id")
	flag.StringVar(&username, "username", "", "username shown on messages")
	flag.BoolVar(&admin, "admin", false, "grant admin rights")
	flag.Parse()

	if uid <= 0 || username == "" {
		log.Fatal("-uid and -username are required")
	}

	cfg := config.MustLoad(configFolder)
	token, err := jwt.New(cfg.JwtKey(), cfg.JwtTTL()).NewToken(domain.User{Id: uid, Username: username, Admin: admin})
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token)
	fmt.Println()
	fmt.Printf("Valid for %s. Send it as \"Authorization: Bearer <token>\" or the accessToken cookie.\n", cfg.JwtTTL())
}
