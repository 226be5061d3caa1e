package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "refresh-news":
		return runRefreshNews(args[1:])
	case "update-keywords":
		return runUpdateKeywords(args[1:])
	case "rank":
		return runRank(args[1:])
	case "articles":
		return runArticles(args[1:])
	case "stats":
		return runStats(args[1:])
	case "hash-key":
		return runHashKey(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "opsdash CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  opsdash <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health           Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  validate         Validate article JSON files against the article schema")
	fmt.Fprintln(os.Stderr, "  refresh-news     Run one news refresh cycle")
	fmt.Fprintln(os.Stderr, "  update-keywords  Run one keyword update cycle")
	fmt.Fprintln(os.Stderr, "  rank             Run one AI ranking pass")
	fmt.Fprintln(os.Stderr, "  articles         List stored news articles")
	fmt.Fprintln(os.Stderr, "  stats            Show news, keyword and AI rank summaries")
	fmt.Fprintln(os.Stderr, "  hash-key         Hash an admin key read from stdin for ADMIN_KEY_HASH")
	fmt.Fprintln(os.Stderr, "  serve            Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"opsdash <command> -h\" for command-specific flags.")
}
