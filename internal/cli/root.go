package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "formats":
		return runFormats(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "ui":
		return runUI(args[1:])
	case "serve":
		return runServe(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("vidgrab: resolve, download and track videos through a vidgrab backend")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  vidgrab serve")
	fmt.Println("  vidgrab formats <url>")
	fmt.Println("  vidgrab fetch <url> --format <id>")
	fmt.Println("  vidgrab ui")
	fmt.Println()
	fmt.Println("Client Commands:")
	fmt.Println("  formats   list the formats the backend offers for a URL")
	fmt.Println("  fetch     submit a download and follow it to completion")
	fmt.Println("  ui        interactive downloader (formats, progress, history)")
	fmt.Println()
	fmt.Println("Backend Commands:")
	fmt.Println("  serve     run the HTTP backend")
	fmt.Println("  doctor    run dependency and filesystem preflight checks")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on formats, fetch and doctor for machine-readable output")
	fmt.Println("  - Client commands talk to VIDGRAB_SERVER unless --server is given")
	fmt.Println("  - Settings are read from the environment and .env.local")
}
