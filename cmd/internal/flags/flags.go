package flags

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.senan.xyz/flagconf"

	"go.arctag.dev/arctag"
	"go.arctag.dev/arctag/clientutil"
	"go.arctag.dev/arctag/musicbrainz"
	"go.arctag.dev/arctag/notifications"
	"go.arctag.dev/arctag/provider"
	"go.arctag.dev/arctag/researchlink"
	"go.arctag.dev/arctag/spotify"
)

func EnvPrefix(prefix string) {
	flagconf.ReadEnvPrefix = func(_ *flag.FlagSet) string {
		return prefix
	}
}

func Parse() {
	userConfig, _ := os.UserConfigDir()
	defaultConfigPath := filepath.Join(userConfig, arctag.Name, "config")
	configPath := flag.String("config-path", defaultConfigPath, "path config file")

	printVersion := flag.Bool("version", false, "print the version")
	printConfig := flag.Bool("config", false, "print the parsed config")

	flag.TextVar(&logLevel, "log-level", &logLevel, "set the logging level")

	flag.Parse()
	flagconf.ParseEnv()
	flagconf.ParseConfig(*configPath)

	if *printVersion {
		fmt.Printf("%s %s\n", flag.CommandLine.Name(), arctag.Version)
		os.Exit(0)
	}
	if *printConfig {
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("%-22s %s\n", f.Name, f.Value)
		})
		os.Exit(0)
	}
}

func Extensions() *[]string {
	r := &extensionsParser{}
	flag.Var(r, "extension", "audio file extension to tag, can be given more than once (default .flac and .mp3)")
	return &r.exts
}

func OnCollision() *arctag.CollisionPolicy {
	r := arctag.CollisionOverwrite
	flag.Var((*collisionParser)(&r), "on-collision", "what to do when files match the same track title (overwrite, error)")
	return &r
}

func ResearchLinks() *researchlink.Builder {
	var r researchlink.Builder
	flag.Var(&researchLinkParser{&r}, "research-link", "define a helper url to help find an album the catalog didn't match, as \"name template\"")
	return &r
}

func Notifications() *notifications.Notifications {
	var r notifications.Notifications
	flag.Var(&notificationsParser{&r}, "notification-uri", "add a shoutrrr notification uri for events, as \"event,... uri\"")
	return &r
}

type ProviderConfig struct {
	Name string

	SpotifyClientID     string
	SpotifyClientSecret string

	MusicBrainz  musicbrainz.Client
	CoverMaxSize int
}

func Provider() *ProviderConfig {
	var r ProviderConfig
	flag.StringVar(&r.Name, "provider", "spotify", "catalog to look albums up in (spotify, musicbrainz, chain)")
	flag.StringVar(&r.SpotifyClientID, "spotify-client-id", "", "spotify api client id")
	flag.StringVar(&r.SpotifyClientSecret, "spotify-client-secret", "", "spotify api client secret")
	flag.IntVar(&r.CoverMaxSize, "cover-max-size", 0, "scale cover and artist images down to fit this many pixels, 0 to keep")

	r.MusicBrainz = musicbrainz.DefaultClient(slog.Default())
	flag.StringVar(&r.MusicBrainz.MBClient.BaseURL, "mb-base-url", r.MusicBrainz.MBClient.BaseURL, "musicbrainz base url")
	flag.DurationVar(&r.MusicBrainz.MBClient.RateLimit, "mb-rate-limit", r.MusicBrainz.MBClient.RateLimit, "musicbrainz rate limit duration")
	flag.StringVar(&r.MusicBrainz.CAAClient.BaseURL, "caa-base-url", r.MusicBrainz.CAAClient.BaseURL, "coverartarchive base url")
	flag.DurationVar(&r.MusicBrainz.CAAClient.RateLimit, "caa-rate-limit", r.MusicBrainz.CAAClient.RateLimit, "coverartarchive rate limit duration")
	return &r
}

// Build constructs the chosen catalog. The chain uses spotify first when it has credentials.
func (c *ProviderConfig) Build() (provider.Provider, error) {
	switch c.Name {
	case "spotify":
		return c.spotify()
	case "musicbrainz":
		return c.musicBrainz(), nil
	case "chain":
		sp, err := c.spotify()
		if err != nil {
			slog.Warn("skipping spotify in provider chain", "err", err)
			return provider.Chain{c.musicBrainz()}, nil
		}
		return provider.Chain{sp, c.musicBrainz()}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", c.Name)
	}
}

func (c *ProviderConfig) spotify() (provider.Provider, error) {
	return spotify.NewProvider(spotify.Config{
		ClientID:     c.SpotifyClientID,
		ClientSecret: c.SpotifyClientSecret,
		HTTPClient: clientutil.Wrap(http.DefaultClient, clientutil.Chain(
			clientutil.WithCache(12*time.Hour),
			clientutil.WithRetry(3, 1*time.Second),
		)),
		CoverMaxSize: c.CoverMaxSize,
	})
}

func (c *ProviderConfig) musicBrainz() provider.Provider {
	return musicbrainz.NewProvider(c.MusicBrainz, c.CoverMaxSize)
}

var httpClient *http.Client

func init() {
	httpClient = &http.Client{Transport: clientutil.Chain(
		clientutil.WithLogging(slog.Default()),
		clientutil.WithUserAgent(fmt.Sprintf(`%s/%s`, arctag.Name, arctag.Version)),
	)(http.DefaultTransport)}

	http.DefaultClient = httpClient
}
