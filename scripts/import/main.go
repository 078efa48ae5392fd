package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/schema"
	"github.com/Decentr-net/agora/internal/storage"
	"github.com/Decentr-net/agora/internal/storage/postgres"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Export             string `long:"export" env:"EXPORT" default:"export.json" description:"path to documents export"`
	Postgres           string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMigrations string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`
}{}

// idNamespace derives item and comment ids from document ids which are not uuids.
// nolint:gochecknoglobals
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Decentr-net/agora/import"))

// export is a dump of documents collections.
type export struct {
	Users  []schema.Profile `json:"users"`
	Posts  []schema.Post    `json:"posts"`
	Shorts []schema.Short   `json:"shorts"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "import"
	parser.LongDescription = "Documents export to database importer"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	logrus.Info("import started")
	logrus.Infof("%+v", opts)

	b, err := ioutil.ReadFile(opts.Export)
	if err != nil {
		logrus.WithError(err).Fatal("failed to read export")
	}

	var e export

	if err := json.Unmarshal(b, &e); err != nil {
		logrus.WithError(err).Fatal("failed to unmarshal export")
	}

	db := mustGetDB()

	if err := importExport(context.Background(), postgres.New(db), &e); err != nil {
		logrus.WithError(err).Fatal("failed to import")
	}

	logrus.Info("done")
}

// importExport puts export into storage. Existing items are skipped, so import can be repeated.
func importExport(ctx context.Context, s storage.Storage, e *export) error {
	logrus.Info("import users")
	for i, v := range e.Users {
		if err := s.CreateProfile(ctx, v.Entity()); err != nil {
			return fmt.Errorf("failed to put profile %s into db: %w", v.UID, err)
		}

		if i%20 == 0 {
			logrus.Infof("%d of %d users imported", i+1, len(e.Users))
		}
	}

	items := make([]*entities.Item, 0, len(e.Posts)+len(e.Shorts))
	for _, v := range e.Posts {
		items = append(items, v.Entity())
	}
	for _, v := range e.Shorts {
		items = append(items, v.Entity())
	}

	logrus.Info("import items")
	for i, v := range items {
		if err := importItem(ctx, s, v); err != nil {
			return err
		}

		if i%20 == 0 {
			logrus.Infof("%d of %d items imported", i+1, len(items))
		}
	}

	return nil
}

// importID returns id as is when it is uuid, otherwise the same uuid is derived for every run.
func importID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}

	return uuid.NewSHA1(idNamespace, []byte(id)).String()
}

// importItem puts item with its likes and comments into storage within one transaction.
func importItem(ctx context.Context, s storage.Storage, item *entities.Item) error {
	id := importID(item.ID)

	switch _, err := s.GetItem(ctx, item.Collection, id); {
	case err == nil:
		logrus.WithField("id", item.ID).Debug("item already exists, skip")
		return nil
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("failed to get item %s: %w", item.ID, err)
	}

	return s.InTx(ctx, func(s storage.Storage) error {
		if err := s.CreateItem(ctx, &storage.CreateItemParams{
			ID:         id,
			Collection: item.Collection,
			Author:     item.Author,
			Text:       item.Text,
			MediaURL:   item.MediaURL,
			CreatedAt:  item.CreatedAt,
		}); err != nil {
			return fmt.Errorf("failed to put item %s into db: %w", item.ID, err)
		}

		seen := make(map[string]bool, len(item.LikedBy))
		for _, u := range item.LikedBy {
			if seen[u] {
				continue
			}
			seen[u] = true

			if _, err := s.ToggleLike(ctx, item.Collection, id, u, item.CreatedAt); err != nil {
				return fmt.Errorf("failed to put like of %s into db: %w", item.ID, err)
			}
		}

		for _, v := range item.Comments {
			c := v
			c.ID = importID(v.ID)

			if err := s.AddComment(ctx, item.Collection, id, &c); err != nil {
				return fmt.Errorf("failed to put comment of %s into db: %w", item.ID, err)
			}
		}

		return nil
	})
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	driver, err := migratep.WithInstance(db, &migratep.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create database migrate driver")
	}

	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", opts.PostgresMigrations), "postgres", driver)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logrus.WithError(err).Fatal("failed to migrate db")
	}

	return db
}
