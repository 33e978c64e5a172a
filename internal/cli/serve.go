package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/embedwebd/httpd/internal/handlers"
	"github.com/embedwebd/httpd/internal/httpcore"
	"github.com/embedwebd/httpd/internal/httpcore/auth"
	"github.com/embedwebd/httpd/internal/httpserver"
	"github.com/embedwebd/httpd/internal/replay"
	"github.com/embedwebd/httpd/internal/upload"
	"github.com/embedwebd/httpd/webdav"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebDAV server over a directory",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (0 picks an OS-assigned port)")
	serveCmd.Flags().StringP("root", "r", "webdav-root", "directory served over WebDAV")
	serveCmd.Flags().Bool("localhost-only", false, "bind loopback interfaces only")
	serveCmd.Flags().String("server-name", "httpd-server", "value advertised in the Server header and default auth realm")
	serveCmd.Flags().String("auth", "none", "authentication method: none, basic, digest, or both")
	serveCmd.Flags().StringToString("accounts", nil, "username=password pairs for basic/digest auth")
	serveCmd.Flags().Bool("hidden", false, "allow dotfiles to be served and uploaded")
	serveCmd.Flags().StringSlice("extensions", nil, "lower-cased file extensions allowed (default: all)")
	serveCmd.Flags().Bool("upload-app", false, "also mount the browser uploader at /")
	serveCmd.Flags().String("record-dir", "", "directory to record request/response pairs into")

	for _, name := range []string{"port", "root", "localhost-only", "server-name", "auth", "accounts", "hidden", "extensions", "upload-app", "record-dir"} {
		viper.BindPFlag(name, serveCmd.Flags().Lookup(name))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	root := viper.GetString("root")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("httpd-server: create webdav root: %w", err)
	}

	fs := webdav.NewLocalFileSystem(root)
	fs.AllowHiddenItems = viper.GetBool("hidden")
	if exts := viper.GetStringSlice("extensions"); len(exts) > 0 {
		fs.AllowedFileExtensions = map[string]bool{}
		for _, e := range exts {
			fs.AllowedFileExtensions[e] = true
		}
	}

	registry := handlers.NewRegistry()
	webdav.NewHandler(fs).Register(registry)
	if viper.GetBool("upload-app") {
		upload.NewHandler(fs).Register(registry)
	}

	cfg := httpserver.DefaultConfig()
	cfg.Port = viper.GetInt("port")
	cfg.BindToLocalhost = viper.GetBool("localhost-only")
	cfg.ServerName = viper.GetString("server-name")
	cfg.AuthenticationMethod = parseAuthMethod(viper.GetString("auth"))
	cfg.AuthenticationAccounts = auth.Accounts(viper.GetStringMapString("accounts"))

	if dir := viper.GetString("record-dir"); dir != "" {
		rec, err := replay.NewRecorder(dir)
		if err != nil {
			return err
		}
		cfg.ListenerWrap = rec.Wrap
		logger.Info().Str("dir", dir).Msg("recording request/response pairs")
	}

	hooks := httpcore.Hooks{
		Close: func(summary httpcore.ConnectionSummary) {
			event := logger.Info()
			if summary.Err != nil {
				event = logger.Warn().Err(summary.Err)
			}
			event.
				Str("method", summary.Method).
				Str("path", summary.Path).
				Int("status", summary.Status).
				Int64("bytes", summary.BytesSent).
				Dur("duration", summary.Duration).
				Str("remote", summary.RemoteAddr).
				Msg("request")
		},
	}

	srv := httpserver.New(cfg, registry, httpserver.Lifecycle{
		DidStart: func() { logger.Info().Msg("server started") },
		DidStop:  func() { logger.Info().Msg("server stopped") },
	}, hooks, logger)

	if err := srv.Start(); err != nil {
		return err
	}
	logger.Info().Int("port", srv.Port()).Str("root", root).Msg("listening")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	srv.Stop()
	return nil
}

func parseAuthMethod(s string) httpserver.AuthenticationMethod {
	switch s {
	case "basic":
		return httpserver.AuthBasic
	case "digest":
		return httpserver.AuthDigest
	case "both":
		return httpserver.AuthBoth
	default:
		return httpserver.AuthNone
	}
}
