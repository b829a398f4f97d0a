package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/emailauth/emailauth/internal/core/ports"
	"github.com/emailauth/emailauth/internal/core/service"
	"github.com/emailauth/emailauth/internal/pkg/config"
	"github.com/emailauth/emailauth/pkg/logger"
)

var (
	createsuperuser = app.Command("createsuperuser", "Create an account with staff and superuser status.")

	superuser_email      = createsuperuser.Flag("email", "Email address of the account.").Required().String()
	superuser_password   = createsuperuser.Flag("password", "Password of the account.").Envar("SUPERUSER_PASSWORD").Required().String()
	superuser_first_name = createsuperuser.Flag("first-name", "First name.").String()
	superuser_last_name  = createsuperuser.Flag("last-name", "Last name.").String()
)

func runCreateSuperuser() error {
	cfg := config.Load()
	log := initLogger(cfg)
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close(ctx) }()

	// No mail is sent from this command, so no queue is attached.
	users := service.NewUserManager(st.users, st.groups, nil, cfg.Mail.DefaultFrom, logger.Component("users"))
	user, err := users.CreateSuperuser(ctx, ports.CreateUserInput{
		Email:     *superuser_email,
		Password:  *superuser_password,
		FirstName: *superuser_first_name,
		LastName:  *superuser_last_name,
	})
	if err != nil {
		return err
	}

	log.Info().Str("user_id", user.ID).Msg("superuser created")
	fmt.Printf("Superuser %s created (%s)\n", user.Email, user.ID)
	return nil
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		if command == createsuperuser.FullCommand() {
			kingpin.FatalIfError(runCreateSuperuser(), "createsuperuser")
			return true
		}
		return false
	})
}
