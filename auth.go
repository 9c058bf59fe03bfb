package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/secure/precis"

	"github.com/sparklive/rustmailerctl/accesstoken"
)

func xreadpassword() string {
	fmt.Printf("password (will echo): ")
	scanner := bufio.NewScanner(os.Stdin)
	// We discard the return value of Scan() since failing to tokenize could
	// either mean reaching EOF but no newline (which can be legitimate if the
	// CLI was programatically called with no trailing newline), or an actual
	// error. Err() distinguishes the two.
	scanner.Scan()
	xcheckf(scanner.Err(), "reading stdin")
	pw := scanner.Text()
	if pw == "" {
		log.Fatal("empty password")
	}
	return pw
}

func cmdLogin(c *cmd) {
	c.help = `Sign in to the backend with the root password.

The password is read from stdin and the returned session token is stored in
the console state database. Subsequent commands use the stored token.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}

	pw := xreadpassword()
	pw, err := precis.OpaqueString.String(pw)
	xcheckf(err, `checking password with "precis" requirements`)

	cl, _, cleanup := xclient(c)
	defer cleanup()
	err = cl.Login(context.Background(), pw)
	xcheckf(err, "login")
	fmt.Println("signed in")
}

func cmdLogout(c *cmd) {
	c.help = "Clear the stored session token."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.Logout(context.Background())
	xcheckf(err, "logout")
}

func cmdResetRootToken(c *cmd) {
	c.help = `Invalidate the current root token and store its replacement.

All clients still using the old token must sign in again.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	token, err := cl.ResetRootToken(context.Background())
	xcheckf(err, "resetting root token")
	fmt.Println(token)
}

func cmdResetRootPassword(c *cmd) {
	c.help = "Set a new root password, read from stdin."
	if len(c.Parse()) != 0 {
		c.Usage()
	}

	pw := xreadpassword()
	pw, err := precis.OpaqueString.String(pw)
	xcheckf(err, `checking password with "precis" requirements`)

	cl, _, cleanup := xclient(c)
	defer cleanup()
	err = cl.ResetRootPassword(context.Background(), pw)
	xcheckf(err, "resetting root password")
}

func cmdTokenList(c *cmd) {
	c.help = "List access tokens with their scopes and accounts."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	l, err := cl.AccessTokenList(context.Background())
	xcheckf(err, "listing access tokens")
	for _, t := range l {
		var accounts []string
		for _, a := range t.Accounts {
			accounts = append(accounts, a.Email)
		}
		var scopes []string
		for _, s := range t.AccessScopes {
			scopes = append(scopes, string(s))
		}
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", t.Token, strings.Join(scopes, ","), strings.Join(accounts, ","), t.Description, time.UnixMilli(t.CreatedAt).Format(time.RFC3339))
	}
}

// xtokenForm builds an access token form from command flags and validates
// it, quitting with the field errors when invalid.
func xtokenForm(accounts, scopes, desc, ipfile string, quota, interval uint) accesstoken.Request {
	f := accesstoken.Form{Description: desc}
	for _, s := range strings.Split(accounts, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, email, ok := strings.Cut(s, ":")
		if !ok {
			log.Fatalf("bad account %q, use id:email", s)
		}
		n, err := strconv.ParseInt(id, 10, 64)
		xcheckf(err, "parsing account id %q", id)
		f.Accounts = append(f.Accounts, accesstoken.AccountRef{ID: n, Email: email})
	}
	for _, s := range strings.Split(scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.AccessScopes = append(f.AccessScopes, accesstoken.Scope(s))
		}
	}
	if ipfile != "" {
		buf, err := os.ReadFile(ipfile)
		xcheckf(err, "reading ip whitelist file")
		f.IPWhitelistText = string(buf)
	}
	if quota > 0 || interval > 0 {
		q := uint32(quota)
		i := uint32(interval)
		f.Quota = &q
		f.IntervalSeconds = &i
	}
	if errs := f.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "%s\n", e)
		}
		os.Exit(1)
	}
	return f.Submit()
}

func cmdTokenCreate(c *cmd) {
	var accounts, scopes, desc, ipfile string
	var quota, interval uint
	c.flag.StringVar(&accounts, "accounts", "", "comma-separated id:email pairs the token grants access to")
	c.flag.StringVar(&scopes, "scopes", "Api", "comma-separated scopes, Api and/or Metrics")
	c.flag.StringVar(&desc, "description", "", "optional description, max 255 characters")
	c.flag.StringVar(&ipfile, "ipwhitelist", "", "file with one IP address per line; when set, only these addresses may use the token")
	c.flag.UintVar(&quota, "quota", 0, "rate limit: max requests per interval, 0 for no limit")
	c.flag.UintVar(&interval, "interval", 0, "rate limit interval in seconds, set together with quota")
	c.params = "-accounts id:email[,...] [-scopes scopes] [-description text] [-ipwhitelist file] [-quota n -interval seconds]"
	c.help = "Create an access token for one or more accounts."
	if len(c.Parse()) != 0 {
		c.Usage()
	}

	req := xtokenForm(accounts, scopes, desc, ipfile, quota, interval)
	cl, _, cleanup := xclient(c)
	defer cleanup()
	t, err := cl.AccessTokenCreate(context.Background(), req)
	xcheckf(err, "creating access token")
	fmt.Println(t.Token)
}

func cmdTokenUpdate(c *cmd) {
	var accounts, scopes, desc, ipfile string
	var quota, interval uint
	c.flag.StringVar(&accounts, "accounts", "", "comma-separated id:email pairs the token grants access to")
	c.flag.StringVar(&scopes, "scopes", "Api", "comma-separated scopes, Api and/or Metrics")
	c.flag.StringVar(&desc, "description", "", "optional description, max 255 characters")
	c.flag.StringVar(&ipfile, "ipwhitelist", "", "file with one IP address per line; when set, only these addresses may use the token")
	c.flag.UintVar(&quota, "quota", 0, "rate limit: max requests per interval, 0 for no limit")
	c.flag.UintVar(&interval, "interval", 0, "rate limit interval in seconds, set together with quota")
	c.params = "token -accounts id:email[,...] [flags]"
	c.help = "Update an access token, replacing its scopes, accounts and ACL."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}

	req := xtokenForm(accounts, scopes, desc, ipfile, quota, interval)
	cl, _, cleanup := xclient(c)
	defer cleanup()
	t, err := cl.AccessTokenUpdate(context.Background(), args[0], req)
	xcheckf(err, "updating access token")
	buf, err := json.MarshalIndent(t, "", "\t")
	xcheckf(err, "marshal token")
	fmt.Printf("%s\n", buf)
}

func cmdTokenRm(c *cmd) {
	c.params = "token"
	c.help = "Delete an access token. Clients using it lose access immediately."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.AccessTokenDelete(context.Background(), args[0])
	xcheckf(err, "deleting access token")
}
