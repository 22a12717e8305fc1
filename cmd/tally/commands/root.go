package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tallybot/tally/pkg/stream"
)

var (
	version string
	commit  string
	date    string
)

var (
	redisURL     string
	instanceName string
)

// controlTimeout bounds how long control commands wait for the daemon's reply.
const controlTimeout = 5 * time.Second

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Tally - chat participation achievement tracker",
	Long: `Tally tracks which members of a cohort have completed named achievements
("sent a chat message", "pushed a commit", ...) by watching the live chat
event stream, and announces progress the first time each member completes one.

The tracker daemon ('tally run') consumes events and owns the durable state;
the remaining commands are control-plane clients that talk to the daemon over
Redis.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", defaultRedisURL(), "Redis connection URL")
	rootCmd.PersistentFlags().StringVarP(&instanceName, "instance", "i", defaultInstanceName(), "Tally instance name")
}

func defaultRedisURL() string {
	if url := os.Getenv("TALLY_REDIS_URL"); url != "" {
		return url
	}
	return "redis://localhost:6379"
}

func defaultInstanceName() string {
	if name := os.Getenv("TALLY_INSTANCE"); name != "" {
		return name
	}
	return "tally"
}

// newStreamClient builds a stream client from the global connection flags.
func newStreamClient() (*stream.Client, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL %q: %w", redisURL, err)
	}

	return stream.NewClient(redisOpts, instanceName)
}

// callControl performs one control-plane round trip against the daemon.
func callControl(req *stream.ControlRequest) (*stream.ControlReply, error) {
	client, err := newStreamClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	reply, err := client.CallControl(ctx, req)
	if err != nil {
		return nil, err
	}
	if !reply.OK {
		return nil, fmt.Errorf("%s", reply.Error)
	}
	return reply, nil
}
