// Package flagx lets independent components each parse only the command-line
// flags they own, without tripping over flags defined elsewhere.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the allowed flags (and their values) from args.
//
// Both "-f value" and "-f=value" are recognised. A following token that
// starts with "-" is never taken as a value. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, keep := allowed[name]; keep {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, keep := allowed[arg]; !keep {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// lookupString parses a single string flag known under several names.
// The last occurrence wins.
func lookupString(names ...string) string {
	var value string

	allowed := make([]string, 0, len(names))
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	for _, n := range names {
		allowed = append(allowed, "-"+n)
		fs.StringVar(&value, n, "", "")
	}
	_ = fs.Parse(FilterArgs(os.Args[1:], allowed))

	return value
}

// JsonConfigFlags returns the JSON config path given via -c or -config.
func JsonConfigFlags() string {
	return lookupString("config", "c")
}

// EnvFileFlags returns the dotenv path given via -e or -env.
func EnvFileFlags() string {
	return lookupString("env", "e")
}
