package redis

import (
	"flag"
	"fmt"
	"net"
	"strconv"

	"github.com/m-lab/go/flagx"
)

// Defaults used when neither a flag nor REDIS_HOST / REDIS_PORT are set.
const (
	DefaultHost = "localhost"
	DefaultPort = 6379
)

// Config holds the address of the Redis server.
type Config struct {
	Host string
	Port int
}

// AddFlags registers -redis-host and -redis-port on fs. Once fs is parsed,
// flagx.ArgsFromEnv fills them from REDIS_HOST and REDIS_PORT.
func (c *Config) AddFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Host, "redis-host", DefaultHost, "Hostname of the Redis server.")
	fs.IntVar(&c.Port, "redis-port", DefaultPort, "TCP port of the Redis server.")
}

// Validate reports whether the config can be dialed.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	return nil
}

// Addr returns the host:port pair handed to go-redis.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadConfig registers the redis flags on fs, parses args, and then
// applies environment variables for any flag of fs not given in args.
// main passes flag.CommandLine so its other flags get the env fallback too.
func LoadConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var c Config
	c.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := flagx.ArgsFromEnv(fs); err != nil {
		return Config{}, fmt.Errorf("reading flags from env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
