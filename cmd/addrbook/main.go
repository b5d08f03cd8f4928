// Command addrbook is a small CLI over the address-book client. It
// doubles as a reference for wiring the SDK: session persistence, the
// notifier, and structured logging.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/addrbook-dev/addrbook-go/pkg/addrbook"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	flagBaseURL     string
	flagSessionFile string
	flagVerbose     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "addrbook",
		Short:         "Address-book API client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultSession := ""
	if home, err := os.UserHomeDir(); err == nil {
		defaultSession = filepath.Join(home, ".addrbook", "session.json")
	}

	root.PersistentFlags().StringVar(&flagBaseURL, "base-url", envOr("ADDRBOOK_BASE_URL", addrbook.DefaultBaseURL), "API base URL")
	root.PersistentFlags().StringVar(&flagSessionFile, "session-file", envOr("ADDRBOOK_SESSION_FILE", defaultSession), "session persistence file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
		newWhoamiCmd(),
		newRefreshCmd(),
		newListCmd(),
		newGetCmd(),
		newAddCmd(),
		newUpdateCmd(),
		newRemoveCmd(),
		newAvatarCmd(),
	)

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newClient builds a client from the global flags.
func newClient() (*addrbook.Client, error) {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	return addrbook.NewClient(&addrbook.ClientOptions{
		BaseURL:     flagBaseURL,
		SessionFile: flagSessionFile,
		Logger:      &zerologAdapter{log: log},
		Notifier:    &consoleNotifier{log: log},
	})
}

func newLoginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Session.Login(cmd.Context(), addrbook.Credentials{
				Username: username,
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", res.Member.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			client.Session.Logout(cmd.Context())
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var email, password, nickname string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new member account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			member, err := client.Auth.Register(cmd.Context(), &addrbook.RegisterParams{
				Email:    email,
				Password: password,
				Nickname: nickname,
			})
			if err != nil {
				return err
			}
			fmt.Printf("registered member %d (%s)\n", member.MemberID, member.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&nickname, "nickname", "", "display nickname")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in member",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if !client.Session.CheckAuth(cmd.Context()) {
				return fmt.Errorf("not logged in")
			}

			member := client.Session.Member()
			fmt.Printf("%s <%s> (id %d)\n", client.Session.DisplayName(), member.Email, member.MemberID)
			if exp := client.Session.TokenExpiresAt(); !exp.IsZero() {
				fmt.Printf("token expires %s\n", exp.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Session.RefreshAccessToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("token refreshed")
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var page, pageSize int
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			list, err := client.AddressBook.List(cmd.Context(), &addrbook.ListParams{
				Page:     page,
				PageSize: pageSize,
				Search:   search,
			})
			if err != nil {
				return err
			}
			for _, entry := range list.Items {
				fmt.Printf("%d\t%s\t%s\t%s\n", entry.ID, entry.Name, entry.Phone, entry.Email)
			}
			fmt.Printf("page %d of %d total\n", list.Page, list.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "entries per page")
	cmd.Flags().StringVar(&search, "search", "", "search keyword")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			entry, err := client.AddressBook.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(entry)
		},
	}
}

func newAddCmd() *cobra.Command {
	params := &addrbook.EntryParams{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			entry, err := client.AddressBook.Create(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Printf("created contact %d\n", entry.ID)
			return nil
		},
	}
	addEntryFlags(cmd, params)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	params := &addrbook.EntryParams{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			entry, err := client.AddressBook.Update(cmd.Context(), id, params)
			if err != nil {
				return err
			}
			fmt.Printf("updated contact %d\n", entry.ID)
			return nil
		},
	}
	addEntryFlags(cmd, params)
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.AddressBook.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("deleted contact %d\n", id)
			return nil
		},
	}
}

func newAvatarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <id> <file>",
		Short: "Upload a contact avatar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			entry, err := client.AddressBook.UploadAvatar(cmd.Context(), id, filepath.Base(args[1]), f)
			if err != nil {
				return err
			}
			fmt.Printf("avatar uploaded: %s\n", entry.AvatarURL)
			return nil
		},
	}
}

func addEntryFlags(cmd *cobra.Command, params *addrbook.EntryParams) {
	cmd.Flags().StringVar(&params.Name, "name", "", "contact name")
	cmd.Flags().StringVar(&params.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&params.Email, "email", "", "email address")
	cmd.Flags().StringVar(&params.Address, "address", "", "postal address")
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// zerologAdapter bridges the SDK logger interface onto zerolog.
type zerologAdapter struct {
	log zerolog.Logger
}

func (l *zerologAdapter) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologAdapter) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologAdapter) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologAdapter) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(fields(keysAndValues)).Msg(msg)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		m[key] = keysAndValues[i+1]
	}
	return m
}

// consoleNotifier renders user-facing notifications on stderr.
type consoleNotifier struct {
	log zerolog.Logger
}

func (n *consoleNotifier) Notify(level addrbook.NotifyLevel, message string) {
	switch level {
	case addrbook.NotifyError:
		n.log.Error().Msg(message)
	case addrbook.NotifyWarning:
		n.log.Warn().Msg(message)
	default:
		n.log.Info().Msg(message)
	}
}
