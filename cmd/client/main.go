package main

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/grpc/client"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type Config struct {
	Addr      string        `envconfig:"RELAY_ADDR" default:"localhost:8080"`
	Identity  string        `envconfig:"RELAY_IDENTITY"`
	Timeout   time.Duration `envconfig:"RELAY_TIMEOUT" default:"10s"`
	DebugJSON bool          `envconfig:"RELAY_DEBUG_JSON" default:"false"`
}

const usage = `usage: client [flags] <command> [args]

commands:
  send <text>      post a text message
  photo <path>     upload an image and post a reference to it
  tail [since]     print messages after the given id, then follow live ones
`

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	flag.StringVar(&cfg.Identity, "as", cfg.Identity, "Identity to sign in with, anonymous when empty")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		color.Red.Printf("%s: %v\n", status.Code(err), status.Convert(err).Message())
		os.Exit(1)
	}
}

func run(cfg Config, command string, args []string) error {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.DebugJSON {
		opts = append(opts, grpc.WithUnaryInterceptor(
			client.LoggingInterceptor(func(line string) { color.Gray.Println(line) }, true)))
	}
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := client.NewRelayClient(conn)
	if err := withTimeout(ctx, cfg.Timeout, relay.OpenSession); err != nil {
		return err
	}
	defer func() { _ = relay.CloseSession(context.Background()) }()

	if cfg.Identity != "" {
		err := withTimeout(ctx, cfg.Timeout, func(ctx context.Context) error {
			return relay.SignIn(ctx, cfg.Identity)
		})
		if err != nil {
			return err
		}
	}

	switch command {
	case "send":
		if len(args) == 0 {
			return fmt.Errorf("send needs a text")
		}
		return withTimeout(ctx, cfg.Timeout, func(ctx context.Context) error {
			id, err := relay.SendText(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			color.Green.Printf("sent #%s\n", id)
			return nil
		})
	case "photo":
		if len(args) != 1 {
			return fmt.Errorf("photo needs exactly one path")
		}
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withTimeout(ctx, cfg.Timeout, func(ctx context.Context) error {
			id, err := relay.SendImage(ctx, content, filepath.Base(args[0]))
			if err != nil {
				return err
			}
			color.Green.Printf("sent image #%s\n", id)
			return nil
		})
	case "tail":
		since := domain.Beginning
		if len(args) > 0 {
			v, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid cursor %q: %w", args[0], err)
			}
			since = domain.MessageID(v)
		}
		return tail(ctx, relay, since)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func tail(ctx context.Context, relay *client.RelayClient, since domain.Cursor) error {
	events, err := relay.Subscribe(ctx, since)
	if err != nil {
		return err
	}
	for evt, err := range events {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch e := evt.(type) {
		case event.Added:
			printMessage(e.Message)
		case event.Changed:
			color.Yellow.Print("~ ")
			printMessage(e.Message)
		case event.Removed:
			color.Gray.Printf("- #%s removed\n", e.Message.ID)
		case event.Moved:
			color.Gray.Printf("> #%s moved to #%s\n", e.PreviousID, e.Message.ID)
		case event.Cancelled:
			color.Red.Printf("stream cancelled: %v\n", e.Reason)
			return nil
		}
	}
	return nil
}

func printMessage(m domain.Message) {
	color.Cyan.Printf("#%s ", m.ID)
	color.Gray.Printf("%s ", m.At.Local().Format("15:04:05"))
	color.Bold.Printf("%s: ", m.Author)
	if m.ImageRef != "" {
		color.Magenta.Println("[image] " + m.ImageRef)
		return
	}
	fmt.Println(m.Text)
}

func withTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
