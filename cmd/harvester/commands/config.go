package commands

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/meepledex/harvester"
	"github.com/meepledex/harvester/db"
	"github.com/meepledex/harvester/storage"
)

func init() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("db_host", "")
	viper.SetDefault("db_port", "5432")
	viper.SetDefault("db_user", "harvester")
	viper.SetDefault("db_password", "harvester_dev_pass")
	viper.SetDefault("db_name", "harvester")
	viper.SetDefault("listing_base_url", "https://boardgamegeek.com/browse/boardgame")
	viper.SetDefault("api_base_url", "https://boardgamegeek.com")
	viper.SetDefault("storage_base_path", "./storage")
	viper.SetDefault("s3_bucket", "")
	viper.SetDefault("s3_region", "")
	viper.SetDefault("s3_endpoint", "")
	viper.SetDefault("s3_access_key_id", "")
	viper.SetDefault("s3_secret_access_key", "")
	viper.SetDefault("s3_use_path_style", false)

	viper.AutomaticEnv()
}

// openDB connects to PostgreSQL using the environment configuration.
// DB_HOST is required; the rest have development defaults.
func openDB() (*db.DB, error) {
	host := viper.GetString("db_host")
	if host == "" {
		return nil, fmt.Errorf("DB_HOST environment variable is required")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host,
		viper.GetString("db_port"),
		viper.GetString("db_user"),
		viper.GetString("db_password"),
		viper.GetString("db_name"),
	)
	return db.New(db.Config{DSN: dsn})
}

// newArchive builds the snapshot archive from the environment: S3 when a
// bucket is configured, local filesystem otherwise.
func newArchive(ctx context.Context) (harvester.SnapshotArchive, error) {
	if bucket := viper.GetString("s3_bucket"); bucket != "" {
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:        viper.GetString("s3_endpoint"),
			Region:          viper.GetString("s3_region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("s3_access_key_id"),
			SecretAccessKey: viper.GetString("s3_secret_access_key"),
			UsePathStyle:    viper.GetBool("s3_use_path_style"),
		})
	}
	return storage.New(storage.Config{BasePath: viper.GetString("storage_base_path")})
}
