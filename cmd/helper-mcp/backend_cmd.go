package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	"github.com/seqgpt/helper-mcp/pkg/backend"
	"github.com/seqgpt/helper-mcp/pkg/blob"
	"github.com/seqgpt/helper-mcp/pkg/dataset"
	"github.com/seqgpt/helper-mcp/pkg/otel"
)

const (
	backendListenKey      = "backend.listen"
	backendStorageKey     = "backend.storage"
	backendBucketKey      = "backend.bucket"
	backendDataDirKey     = "backend.data_dir"
	backendDatabaseURLKey = "backend.database_url"
	backendS3EndpointKey  = "backend.s3_endpoint"
	backendS3RegionKey    = "backend.s3_region"
	backendS3InsecureKey  = "backend.s3_insecure"
	backendS3PathStyleKey = "backend.s3_path_style"
	backendTraceStdoutKey = "backend.trace_stdout"
)

func newBackendCommand(baseLogger pslog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run the helper backend data service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			shutdownTracing, err := otel.Init(ctx, otel.Config{
				UseStdout: viper.GetBool(backendTraceStdoutKey),
			})
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracing(flushCtx)
			}()

			store, err := backendStoreFromViper()
			if err != nil {
				return err
			}
			catalog, err := backendCatalogFromViper(ctx)
			if err != nil {
				return err
			}
			if catalog != nil {
				defer catalog.Close()
			}
			srv, err := backend.New(backend.Options{
				Store:   store,
				Catalog: catalog,
				Logger:  baseLogger,
			})
			if err != nil {
				return err
			}
			return srv.Run(ctx, strings.TrimSpace(viper.GetString(backendListenKey)))
		},
	}

	flags := cmd.Flags()
	flags.StringP("listen", "l", "127.0.0.1:8000", "listen address for the backend HTTP service")
	flags.String("storage", "fs", "object storage backend: fs, s3 or memory")
	flags.String("bucket", "datasets", "bucket name objects are addressed under")
	flags.String("data-dir", "./helper-data", "directory for fs storage")
	flags.String("database-url", "sqlite:file:helper.sqlite?_pragma=busy_timeout(5000)",
		"dataset catalog DSN (sqlite:... or postgres://...), empty disables the catalog")
	flags.String("s3-endpoint", "", "S3 endpoint (default AWS, honors region)")
	flags.String("s3-region", "", "S3 region")
	flags.Bool("s3-insecure", false, "use plain HTTP for the S3 endpoint")
	flags.Bool("s3-path-style", false, "use path-style S3 bucket lookup (MinIO and friends)")
	flags.Bool("trace-stdout", false, "emit OpenTelemetry spans to stdout")

	mustBindFlag(backendListenKey, "HELPER_BACKEND_LISTEN", flags.Lookup("listen"))
	mustBindFlag(backendStorageKey, "HELPER_BACKEND_STORAGE", flags.Lookup("storage"))
	mustBindFlag(backendBucketKey, "HELPER_BACKEND_BUCKET", flags.Lookup("bucket"))
	mustBindFlag(backendDataDirKey, "HELPER_BACKEND_DATA_DIR", flags.Lookup("data-dir"))
	mustBindFlag(backendDatabaseURLKey, "HELPER_BACKEND_DATABASE_URL", flags.Lookup("database-url"))
	mustBindFlag(backendS3EndpointKey, "HELPER_BACKEND_S3_ENDPOINT", flags.Lookup("s3-endpoint"))
	mustBindFlag(backendS3RegionKey, "HELPER_BACKEND_S3_REGION", flags.Lookup("s3-region"))
	mustBindFlag(backendS3InsecureKey, "HELPER_BACKEND_S3_INSECURE", flags.Lookup("s3-insecure"))
	mustBindFlag(backendS3PathStyleKey, "HELPER_BACKEND_S3_PATH_STYLE", flags.Lookup("s3-path-style"))
	mustBindFlag(backendTraceStdoutKey, "HELPER_BACKEND_TRACE_STDOUT", flags.Lookup("trace-stdout"))

	return cmd
}

func backendStoreFromViper() (blob.Store, error) {
	bucket := strings.TrimSpace(viper.GetString(backendBucketKey))
	storage := strings.ToLower(strings.TrimSpace(viper.GetString(backendStorageKey)))
	switch storage {
	case "memory":
		return blob.NewMemoryStore(bucket), nil
	case "fs":
		return blob.NewFSStore(bucket, strings.TrimSpace(viper.GetString(backendDataDirKey)))
	case "s3":
		return blob.NewS3Store(blob.S3Config{
			Endpoint:       strings.TrimSpace(viper.GetString(backendS3EndpointKey)),
			Region:         strings.TrimSpace(viper.GetString(backendS3RegionKey)),
			Bucket:         bucket,
			Insecure:       viper.GetBool(backendS3InsecureKey),
			ForcePathStyle: viper.GetBool(backendS3PathStyleKey),
		})
	default:
		return nil, fmt.Errorf("unknown --storage %q (expected fs, s3 or memory)", storage)
	}
}

func backendCatalogFromViper(ctx context.Context) (*dataset.Catalog, error) {
	dsn := strings.TrimSpace(viper.GetString(backendDatabaseURLKey))
	if dsn == "" {
		return nil, nil
	}
	catalog, err := dataset.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := catalog.Migrate(ctx); err != nil {
		_ = catalog.Close()
		return nil, err
	}
	return catalog, nil
}
