package main

import (
	"fmt"

	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/service"
	"github.com/spf13/cobra"
)

func newSendCmd(a *app) *cobra.Command {
	var (
		req        model.NotifyRequest
		password   string
		hash       string
		encryption string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Register the application and send one notification",
		Long: `Register the configured application with the target and send one
notification. Without --host the configured gntp.address is used; with it the
notification goes to that remote host (port 23053 unless given).

Icons may be http(s) URLs, sent as is, or local files, sent as binary
resources.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gcfg := a.cfg.GNTP
			if cmd.Flags().Changed("password") {
				gcfg.Password = password
			}
			if cmd.Flags().Changed("hash") {
				gcfg.HashAlgorithm = hash
			}
			if cmd.Flags().Changed("encryption") {
				gcfg.Encryption = encryption
			}
			if err := gcfg.Security().Validate(); err != nil {
				return err
			}

			transport := gntp.NewTCPTransport(gcfg.Timeout)
			svc := service.NewNotifyService(gcfg, nil, transport, a.log)
			result, err := svc.Send(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&req.Message, "message", "m", "", "Notification text (required)")
	f.StringVarP(&req.Title, "title", "t", "", "Notification title")
	f.StringVarP(&req.Notification, "notification", "n", "", "Notification type (default gntp.default_notification)")
	f.BoolVarP(&req.Sticky, "sticky", "s", false, "Keep the notification on screen until dismissed")
	f.StringVarP(&req.Priority, "priority", "p", "", "very low, moderate, normal, high, emergency or -2..2")
	f.StringVar(&req.AppIcon, "appicon", "", "Application icon URL or file")
	f.StringVar(&req.Icon, "icon", "", "Notification icon URL or file")
	f.StringVar(&req.Host, "host", "", "Remote host[:port] to notify")
	f.StringVar(&req.CoalescingID, "coalescing-id", "", "Replace an earlier notification with this ID")
	f.StringVar(&password, "password", "", "GNTP password (overrides gntp.password)")
	f.StringVar(&hash, "hash", "", "Key hash: MD5, SHA1, SHA256 or SHA512")
	f.StringVar(&encryption, "encryption", "", "Encryption: NONE, AES, DES or 3DES")
	return cmd
}
