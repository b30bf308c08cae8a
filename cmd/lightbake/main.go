// lightbake bakes static lighting for scenes described in YAML.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/midgard-lightbake/internal/config"
)

func main() {
	flag.Usage = printUsage
	config.ParseFlags()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "bake":
		err = cmdBake(args, false)
	case "volume":
		err = cmdBake(args, true)
	case "info":
		err = cmdInfo(args)
	case "uvcheck":
		err = cmdUVCheck(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lightbake - static lighting baker

Usage:
  lightbake [flags] <command> <scene.yaml>

Commands:
  bake <scene.yaml>      Bake lightmaps, shadow maps and the volumetric lightmap
  volume <scene.yaml>    Bake and dump the volumetric lightmap bricks
  info <scene.yaml>      Show scene contents
  uvcheck <scene.yaml>   Check lightmap UVs for wrapping and overlaps
  config [file]          Print the effective config, or write it to file
  help                   Show this help

Flags:
  -config <file>         Extra config file, applied over the user config dir
                         and the scene directory lightbake.yaml
  -debug                 Debug logging
  -threads <n>           Worker threads (0 uses every CPU)
  -bounces <n>           Indirect lighting bounces
  -out <dir>             Output directory
  -conservative[=false]  Conservative texel rasterization
  -no-cache              Disable the irradiance cache
  -cached-hitpoints[=false]
                         Replay first pass hit points in later radiosity passes
  -light-space-sdf       Build directional distance field shadows in light space
  -tiff                  Dump debug TIFF images

Examples:
  lightbake bake courtyard.yaml
  lightbake -threads 8 -bounces 1 -tiff -out baked bake courtyard.yaml
  lightbake uvcheck courtyard.yaml
  lightbake -bounces 1 config scenes/lightbake.yaml`)
}
