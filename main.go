//	@title			CTP Platform API
//	@version		0.1.0
//	@description	Access-control and coordination core for the course platform: auth, hierarchical permissions, generic CRUD, discussion messages, durable task submission, and realtime WebSocket notifications.

//	@contact.name	CTP Team

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host	http://localhost:8080

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and a session or API token.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"

	"ctp/client"
	"ctp/config"
	"ctp/database"
	"ctp/internal/auth"
	"ctp/internal/cache"
	"ctp/internal/permission"
	"ctp/internal/pubsub"
	"ctp/internal/session"
	"ctp/internal/workflow"
	"ctp/internal/wsgateway"
	"ctp/router"
	"ctp/utils"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	logrus.SetReportCaller(true)
	logrus.SetFormatter(&nested.Formatter{
		CustomCallerFormatter: func(f *runtime.Frame) string {
			filename := path.Base(f.File)
			return fmt.Sprintf(" (%s:%d)", filename, f.Line)
		},
		FieldsOrder:     []string{"component", "category"},
		HideKeys:        true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logrus.SetLevel(logrus.InfoLevel)
	logrus.Info("Logger initialized")
}

func newRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.GetString("redis.host"), config.GetInt("redis.port")),
		Password: config.GetString("redis.password"),
		DB:       config.GetInt("redis.db"),
	})
}

func main() {
	var port string
	var conf string
	var devMode bool

	var rootCmd = &cobra.Command{
		Use:   "ctp",
		Short: "ctp is the course platform's access-control and coordination core",
		Run: func(cmd *cobra.Command, args []string) {
			logrus.Println("Please specify a mode: serve or worker")
		},
	}

	rootCmd.PersistentFlags().StringVarP(&port, "port", "p", "8080", "Port to run the server on")
	rootCmd.PersistentFlags().StringVarP(&conf, "conf", "c", "/etc/ctp/config.prod.toml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Enable verbose error responses")

	if err := viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port")); err != nil {
		logrus.Fatalf("failed to bind flag: %v", err)
	}
	if err := viper.BindPFlag("conf", rootCmd.PersistentFlags().Lookup("conf")); err != nil {
		logrus.Fatalf("failed to bind flag: %v", err)
	}

	config.Init(viper.GetString("conf"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, including the WebSocket gateway",
		Run: func(cmd *cobra.Command, args []string) {
			logrus.Println("Running in serve mode")
			database.InitDB()
			utils.InitValidator()
			client.InitTraceProvider()
			defer client.ShutdownTraceProvider(context.Background())

			rdb := newRedisClient()
			appCache := cache.New(rdb)
			permEngine := permission.New(database.DB, appCache)
			bus := pubsub.New(rdb)

			registry := auth.NewRegistry(
				&auth.SessionProvider{DB: database.DB},
				&auth.APITokenProvider{DB: database.DB},
				&auth.SSOProvider{DB: database.DB, Verifier: auth.NoopSSOVerifier{}},
			)

			gateway := workflow.NewSQLGateway(database.DB)
			wsGateway := wsgateway.New(database.DB, registry, bus)

			deps := router.Dependencies{
				DB:      database.DB,
				Cache:   appCache,
				Perm:    permEngine,
				Auth:    registry,
				Bus:     bus,
				Gateway: gateway,
				WS:      wsGateway,
				DevMode: viper.GetBool("dev") || devMode,
			}

			engine := router.New(deps)
			srv := port
			logrus.Infof("listening on :%s", srv)
			if err := engine.Run(":" + srv); err != nil {
				logrus.Fatalf("server exited: %v", err)
			}
		},
	}

	var workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Run the background poller: due-task promotion and session cleanup",
		Run: func(cmd *cobra.Command, args []string) {
			logrus.Println("Running in worker mode")
			database.InitDB()
			client.InitTraceProvider()
			defer client.ShutdownTraceProvider(context.Background())

			gateway := workflow.NewSQLGateway(database.DB)

			scheduler := cron.New(cron.WithSeconds())
			if _, err := scheduler.AddFunc("*/5 * * * * *", func() {
				if err := gateway.PollDue(ctx); err != nil {
					logrus.Errorf("poll due tasks: %v", err)
				}
			}); err != nil {
				logrus.Fatalf("failed to schedule due-task poller: %v", err)
			}
			if _, err := scheduler.AddFunc("0 0 * * * *", func() {
				if n, err := session.CleanupExpired(ctx, database.DB, 30); err != nil {
					logrus.Errorf("cleanup expired sessions: %v", err)
				} else if n > 0 {
					logrus.Infof("cleaned up %d expired sessions", n)
				}
			}); err != nil {
				logrus.Fatalf("failed to schedule session cleanup: %v", err)
			}
			scheduler.Start()
			defer scheduler.Stop()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			logrus.Println("worker shutting down")
			cancel()
		},
	}

	rootCmd.AddCommand(serveCmd, workerCmd)
	if err := rootCmd.Execute(); err != nil {
		logrus.Println(err.Error())
		os.Exit(1)
	}
}
