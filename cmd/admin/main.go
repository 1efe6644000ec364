package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/encryption"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"
	"chatroom/backend/internal/worker"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const usage = `Usage: admin <command> [flags]

Commands:
  migrate                         create or update the database schema
  add-user --email E --name N     register a user (normally done by the account service)
  token --user ID [--ttl 72h]     print a bearer token for a user
  backfill (--room ID | --all)    encrypt messages stored while the cipher was unavailable
           [--queue]              enqueue tasks instead of running inline
  worker                          run the back-fill task worker
`

type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *storage.Service
}

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}
	command := os.Args[1]

	fs := pflag.NewFlagSet(command, pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "path to a YAML config file")
	email := fs.String("email", "", "user email (add-user)")
	name := fs.String("name", "", "display name (add-user)")
	userID := fs.String("user", "", "user id (token)")
	ttl := fs.Duration("ttl", config.DevTokenTTL, "token lifetime (token)")
	roomID := fs.String("room", "", "room id (backfill)")
	all := fs.Bool("all", false, "every room (backfill)")
	queue := fs.Bool("queue", false, "enqueue instead of running inline (backfill)")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := config.NewLogger(cfg)

	db, err := storage.Open(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	a := &app{cfg: cfg, log: log, store: storage.NewStorageService(db)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "migrate":
		if err := storage.Migrate(db); err != nil {
			log.Fatalf("Error running migrations: %v", err)
		}
		fmt.Println("Schema is up to date.")
	case "add-user":
		if *email == "" || *name == "" {
			fmt.Println("Usage: admin add-user --email <email> --name <name>")
			os.Exit(1)
		}
		user := &models.User{Email: *email, DisplayName: *name}
		if err := a.store.SaveUser(ctx, user); err != nil {
			log.Fatalf("Error adding user: %v", err)
		}
		fmt.Printf("User %s created.\n", user.ID)
	case "token":
		if *userID == "" {
			fmt.Println("Usage: admin token --user <user_id> [--ttl 72h]")
			os.Exit(1)
		}
		token, err := a.issueToken(ctx, *userID, *ttl)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
	case "backfill":
		if (*roomID == "") == !*all {
			fmt.Println("Usage: admin backfill (--room <room_id> | --all) [--queue]")
			os.Exit(1)
		}
		if err := a.backfill(ctx, *roomID, *queue); err != nil {
			log.Fatalf("Error during back-fill: %v", err)
		}
	case "worker":
		if err := a.runWorker(ctx); err != nil {
			log.Fatalf("Worker failed: %v", err)
		}
	default:
		fmt.Print(usage)
		os.Exit(1)
	}
}

func (a *app) issueToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	user, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return auth.Sign(a.cfg.JWTSecret, user, ttl)
}

func (a *app) redisOpt() (asynq.RedisClientOpt, error) {
	if a.cfg.RedisAddr == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("REDIS_ADDR must be set")
	}
	return asynq.RedisClientOpt{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, nil
}

func (a *app) backfiller() (*worker.Backfiller, error) {
	cipher, err := encryption.New(a.cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return worker.NewBackfiller(a.store, cipher, a.cfg.MessageRetention, a.log), nil
}

// backfill runs inline unless queue is set. An empty roomID means every room.
func (a *app) backfill(ctx context.Context, roomID string, queue bool) error {
	if queue {
		opt, err := a.redisOpt()
		if err != nil {
			return err
		}
		enq := worker.NewEnqueuer(opt, a.log)
		defer enq.Close()

		ids := []string{roomID}
		if roomID == "" {
			if ids, err = a.store.ListRoomIDs(ctx); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if err := enq.EnqueueReencrypt(ctx, id); err != nil {
				return err
			}
		}
		fmt.Printf("Enqueued %d back-fill tasks.\n", len(ids))
		return nil
	}

	b, err := a.backfiller()
	if err != nil {
		return err
	}
	var results []worker.BackfillResult
	if roomID == "" {
		results, err = b.BackfillAll(ctx)
	} else {
		var res worker.BackfillResult
		res, err = b.BackfillRoom(ctx, roomID)
		results = append(results, res)
	}
	for _, r := range results {
		fmt.Printf("%s: scanned=%d encrypted=%d failed=%d\n", r.RoomID, r.Scanned, r.Encrypted, r.Failed)
	}
	return err
}

func (a *app) runWorker(ctx context.Context) error {
	opt, err := a.redisOpt()
	if err != nil {
		return err
	}
	b, err := a.backfiller()
	if err != nil {
		return err
	}
	ws := worker.NewWorkerServer(opt, b, a.log)

	go func() {
		<-ctx.Done()
		ws.Shutdown()
	}()
	return ws.Start()
}
