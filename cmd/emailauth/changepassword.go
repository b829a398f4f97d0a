package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/emailauth/emailauth/internal/core/domain"
	"github.com/emailauth/emailauth/internal/core/service"
	"github.com/emailauth/emailauth/internal/pkg/config"
	"github.com/emailauth/emailauth/pkg/logger"
)

var (
	changepassword = app.Command("changepassword", "Set or disable the password of an account.")

	changepassword_email    = changepassword.Flag("email", "Email address of the account.").Required().String()
	changepassword_password = changepassword.Flag("password", "New password.").Envar("ACCOUNT_PASSWORD").String()
	changepassword_unusable = changepassword.Flag("unusable", "Disable password login for the account.").Bool()
)

func runChangePassword() error {
	if *changepassword_unusable == (*changepassword_password != "") {
		return fmt.Errorf("exactly one of --password or --unusable is required")
	}

	cfg := config.Load()
	log := initLogger(cfg)
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close(ctx) }()

	users := service.NewUserManager(st.users, st.groups, nil, cfg.Mail.DefaultFrom, logger.Component("users"))
	user, err := users.GetUser(ctx, *changepassword_email)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	if *changepassword_unusable {
		err = users.SetUnusablePassword(ctx, user.ID)
	} else {
		err = users.SetPassword(ctx, user.ID, *changepassword_password)
	}
	if err != nil {
		return err
	}

	log.Info().Str("user_id", user.ID).Bool("unusable", *changepassword_unusable).Msg("password changed")
	fmt.Printf("Password changed for %s\n", user.Email)
	return nil
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		if command == changepassword.FullCommand() {
			kingpin.FatalIfError(runChangePassword(), "changepassword")
			return true
		}
		return false
	})
}
