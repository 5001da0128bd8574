package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"github.com/xyproto/env/v2"
	"github.com/xyproto/ld/internal/link"
)

var cfgFile string

// loadConfig resolves the linker's design constants starting from
// spec.md §3's fixed defaults, widened by --config and then by LD_*
// environment variables (SPEC_FULL.md "Configuration"). Defaults match
// spec.md exactly unless a config file or environment variable overrides
// them.
func loadConfig() link.Config {
	cfg := link.DefaultConfig()

	v := viper.New()
	v.SetDefault("text_base", cfg.TextBase)
	v.SetDefault("bss_base", cfg.BssBase)
	v.SetDefault("data_base", cfg.DataBase)
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("got_pad", cfg.GotPad)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "ld: warning: could not read config file:", err)
		}
	}
	v.AutomaticEnv()
	v.SetEnvPrefix("LD")

	cfg.TextBase = uint32(v.GetUint("text_base"))
	cfg.BssBase = uint32(v.GetUint("bss_base"))
	cfg.DataBase = uint32(v.GetUint("data_base"))
	cfg.PageSize = uint32(v.GetUint("page_size"))
	cfg.GotPad = uint32(v.GetUint("got_pad"))

	return cfg
}

// outputPath returns the -o value, falling back to LD_OUT and then the
// spec's a.out default (spec.md §6).
func outputPath(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return env.Str("LD_OUT", "a.out")
}

func verbose() bool {
	return env.Bool("LD_VERBOSE")
}
