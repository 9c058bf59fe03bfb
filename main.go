// Command rustmailerctl is an administrative console for a RustMailer
// backend: it manages access tokens, MTAs, OAuth2 clients, SOCKS5 proxies,
// mail and task queues over the backend HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sparklive/rustmailerctl/client"
	"github.com/sparklive/rustmailerctl/mlog"
	"github.com/sparklive/rustmailerctl/querycache"
	"github.com/sparklive/rustmailerctl/rmc"
	"github.com/sparklive/rustmailerctl/rmvar"
	"github.com/sparklive/rustmailerctl/state"
)

func envString(k, def string) string {
	s := os.Getenv(k)
	if s == "" {
		return def
	}
	return s
}

var commands = []struct {
	cmd string
	fn  func(c *cmd)
}{
	{"login", cmdLogin},
	{"logout", cmdLogout},
	{"token list", cmdTokenList},
	{"token create", cmdTokenCreate},
	{"token update", cmdTokenUpdate},
	{"token rm", cmdTokenRm},
	{"resetroottoken", cmdResetRootToken},
	{"resetrootpassword", cmdResetRootPassword},
	{"mta list", cmdMTAList},
	{"mta add", cmdMTAAdd},
	{"mta update", cmdMTAUpdate},
	{"mta rm", cmdMTARm},
	{"mta sendtest", cmdMTASendTest},
	{"oauth2 list", cmdOAuth2List},
	{"oauth2 add", cmdOAuth2Add},
	{"oauth2 update", cmdOAuth2Update},
	{"oauth2 rm", cmdOAuth2Rm},
	{"oauth2 authurl", cmdOAuth2AuthURL},
	{"oauth2 tokens", cmdOAuth2Tokens},
	{"proxy list", cmdProxyList},
	{"proxy add", cmdProxyAdd},
	{"proxy update", cmdProxyUpdate},
	{"proxy rm", cmdProxyRm},
	{"mailbox list", cmdMailboxList},
	{"message list", cmdMessageList},
	{"message search", cmdMessageSearch},
	{"message content", cmdMessageContent},
	{"message export", cmdMessageExport},
	{"message flag", cmdMessageFlag},
	{"message reply", cmdMessageReply},
	{"message forward", cmdMessageForward},
	{"message move", cmdMessageMove},
	{"message rm", cmdMessageRm},
	{"tasks email list", cmdTasksEmailList},
	{"tasks email rm", cmdTasksEmailRm},
	{"tasks hook list", cmdTasksHookList},
	{"tasks hook rm", cmdTasksHookRm},
	{"notifications", cmdNotifications},
	{"overview", cmdOverview},
	{"license", cmdLicense},
	{"license set", cmdLicenseSet},
	{"config test", cmdConfigTest},
	{"config example", cmdConfigExample},
	{"loglevels", cmdLoglevels},
	{"version", cmdVersion},
	{"help", cmdHelp},
	{"helpall", cmdHelpall},
}

var cmds []cmd

func init() {
	for _, xc := range commands {
		c := cmd{words: strings.Split(xc.cmd, " "), fn: xc.fn}
		cmds = append(cmds, c)
	}
}

type cmd struct {
	words []string
	fn    func(c *cmd)

	// Set before calling command.
	flag     *flag.FlagSet
	flagArgs []string
	_gather  bool // Set when using Parse to gather usage for a command.

	// Set by invoked command or Parse.
	unlisted bool   // If set, command is not listed until at least some words are matched from command.
	params   string // Arguments to command. Multiple lines possible.
	help     string // Additional explanation. First line is synopsis, the rest is only printed for an explicit help/usage for that command.
	args     []string

	log mlog.Log
}

func (c *cmd) Parse() []string {
	// To gather params and usage information, we just run the command but cause this
	// panic after the command has registered its flags and set its params and help
	// information. This is then caught and that info printed.
	if c._gather {
		panic("gather")
	}

	c.flag.Usage = c.Usage
	c.flag.Parse(c.flagArgs)
	c.args = c.flag.Args()
	return c.args
}

func (c *cmd) gather() {
	c.flag = flag.NewFlagSet("rustmailerctl "+strings.Join(c.words, " "), flag.ExitOnError)
	c._gather = true
	defer func() {
		x := recover()
		// panic generated by Parse.
		if x != "gather" {
			panic(x)
		}
	}()
	c.fn(c)
}

func (c *cmd) makeUsage() string {
	var r strings.Builder
	cs := "rustmailerctl " + strings.Join(c.words, " ")
	for i, line := range strings.Split(strings.TrimSpace(c.params), "\n") {
		s := ""
		if i == 0 {
			s = "usage:"
		}
		if line != "" {
			line = " " + line
		}
		fmt.Fprintf(&r, "%6s %s%s\n", s, cs, line)
	}
	c.flag.SetOutput(&r)
	c.flag.PrintDefaults()
	return r.String()
}

func (c *cmd) printUsage() {
	fmt.Fprint(os.Stderr, c.makeUsage())
	if c.help != "" {
		fmt.Fprint(os.Stderr, "\n"+c.help+"\n")
	}
}

func (c *cmd) Usage() {
	c.printUsage()
	os.Exit(2)
}

func cmdHelp(c *cmd) {
	c.params = "[command ...]"
	c.help = `Prints help about matching commands.

If multiple commands match, they are listed along with the first line of their help text.
If a single command matches, its usage and full help text is printed.
`
	args := c.Parse()
	if len(args) == 0 {
		c.Usage()
	}

	prefix := func(l, pre []string) bool {
		if len(pre) > len(l) {
			return false
		}
		return slices.Equal(pre, l[:len(pre)])
	}

	var partial []cmd
	for _, c := range cmds {
		if slices.Equal(c.words, args) {
			c.gather()
			fmt.Print(c.makeUsage())
			if c.help != "" {
				fmt.Print("\n" + c.help + "\n")
			}
			return
		} else if prefix(c.words, args) {
			partial = append(partial, c)
		}
	}
	if len(partial) == 0 {
		fmt.Fprintf(os.Stderr, "%s: unknown command\n", strings.Join(args, " "))
		os.Exit(2)
	}
	for _, c := range partial {
		c.gather()
		line := "rustmailerctl " + strings.Join(c.words, " ")
		fmt.Printf("%s\n", line)
		if c.help != "" {
			fmt.Printf("\t%s\n", strings.Split(c.help, "\n")[0])
		}
	}
}

func cmdHelpall(c *cmd) {
	c.unlisted = true
	c.help = `Print all detailed usage and help information for all listed commands.

Used to generate documentation.
`
	args := c.Parse()
	if len(args) != 0 {
		c.Usage()
	}

	n := 0
	for _, c := range cmds {
		c.gather()
		if c.unlisted {
			continue
		}
		if n > 0 {
			fmt.Fprintf(os.Stderr, "\n")
		}
		n++

		fmt.Fprintf(os.Stderr, "# rustmailerctl %s\n\n", strings.Join(c.words, " "))
		if c.help != "" {
			fmt.Fprintln(os.Stderr, c.help+"\n")
		}
		s := c.makeUsage()
		s = "\t" + strings.ReplaceAll(s, "\n", "\n\t")
		fmt.Fprintln(os.Stderr, s)
	}
}

func usage(l []cmd, unlisted bool) {
	var lines []string
	if !unlisted {
		lines = append(lines, "rustmailerctl [-config rustmailerctl.conf] [-loglevel level] ...")
	}
	for _, c := range l {
		c.gather()
		if c.unlisted && !unlisted {
			continue
		}
		for _, line := range strings.Split(c.params, "\n") {
			x := append([]string{"rustmailerctl"}, c.words...)
			if line != "" {
				x = append(x, line)
			}
			lines = append(lines, strings.Join(x, " "))
		}
	}
	for i, line := range lines {
		pre := "       "
		if i == 0 {
			pre = "usage: "
		}
		fmt.Fprintln(os.Stderr, pre+line)
	}
	os.Exit(2)
}

var loglevel string

func main() {
	log.SetFlags(0)

	flag.StringVar(&rmc.ConfigPath, "config", envString("RUSTMAILERCTLCONF", filepath.FromSlash("rustmailerctl.conf")), "configuration file, defaults to $RUSTMAILERCTLCONF with a fallback to rustmailerctl.conf")
	flag.StringVar(&loglevel, "loglevel", "", "if non-empty, this log level is set early in startup")

	flag.Usage = func() { usage(cmds, false) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage(cmds, false)
	}

	ll := loglevel
	if ll == "" {
		ll = "error"
	}
	if level, ok := mlog.Levels[ll]; ok {
		rmc.Conf.Log[""] = level
		mlog.SetConfig(rmc.Conf.Log)
		// note: SetConfig may be called again when subcommands load the config file.
	} else {
		log.Fatalf("unknown loglevel %q", loglevel)
	}

	var partial []cmd
next:
	for _, c := range cmds {
		for i, w := range c.words {
			if i >= len(args) || w != args[i] {
				if i > 0 {
					partial = append(partial, c)
				}
				continue next
			}
		}
		c.flag = flag.NewFlagSet("rustmailerctl "+strings.Join(c.words, " "), flag.ExitOnError)
		c.flagArgs = args[len(c.words):]
		c.log = mlog.New(strings.Join(c.words, ""), nil)
		c.fn(&c)
		return
	}
	if len(partial) > 0 {
		usage(partial, true)
	}
	usage(cmds, false)
}

func xcheckf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Fatalf("%s: %s", msg, err)
}

// xclient loads the config, opens the console state database and returns a
// client for the configured backend. The caller must call the returned
// cleanup function.
func xclient(c *cmd) (*client.Client, *state.Store, func()) {
	rmc.MustLoadConfig()
	st, err := state.Open(context.Background(), c.log, rmc.DataDirPath("console.db"))
	xcheckf(err, "opening state database")

	base := rmc.Conf.Static.BaseURL
	if rmc.Conf.Static.Development {
		base = client.DevBaseURL
	}
	cl := &client.Client{
		BaseURL: base,
		Creds:   st,
		Cache:   querycache.New(),
		Policy:  querycache.Policy{Development: rmc.Conf.Static.Development},
		OnUnauthorized: func(u string) {
			fmt.Fprintln(os.Stderr, "session expired, sign in again with: rustmailerctl login")
		},
	}
	return cl, st, func() {
		if err := st.Close(); err != nil {
			c.log.Errorx("closing state database", err)
		}
	}
}

func cmdVersion(c *cmd) {
	c.help = "Prints this tool's version number."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	fmt.Println(rmvar.Version)
}

func cmdConfigTest(c *cmd) {
	c.help = `Parses and validates the configuration file.

If valid, the command exits with status 0. If not valid, all errors encountered
are printed.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}

	errs := rmc.LoadConfig()
	if len(errs) > 0 {
		fmt.Printf("%d errors in config file:\n", len(errs))
		for _, err := range errs {
			fmt.Printf("%s\n", err)
		}
		os.Exit(1)
	}
	fmt.Println("config OK")
}

func cmdConfigExample(c *cmd) {
	c.help = `Print an example configuration file to stdout.

Write it to rustmailerctl.conf and edit the fields before use.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	err := rmc.WriteExampleConfig(os.Stdout)
	xcheckf(err, "writing example config")
}

func cmdLoglevels(c *cmd) {
	c.help = `Print the configured log levels.

The default log level and per-package overrides come from the configuration
file, with the -loglevel flag overriding the default.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	rmc.MustLoadConfig()
	for pkg, level := range rmc.Conf.Log {
		if pkg == "" {
			pkg = "(default)"
		}
		s, ok := mlog.LevelStrings[level]
		if !ok {
			s = level.String()
		}
		fmt.Printf("%s: %s\n", pkg, s)
	}
}
