package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sparklive/rustmailerctl/client"
	"github.com/sparklive/rustmailerctl/mta"
	"github.com/sparklive/rustmailerctl/oauth2client"
)

func xparseID(s, what string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	xcheckf(err, "parsing %s %q", what, s)
	return id
}

func xprintJSON(v any) {
	buf, err := json.MarshalIndent(v, "", "\t")
	xcheckf(err, "marshal")
	fmt.Printf("%s\n", buf)
}

func xfieldErrs[T interface{ Error() string }](errs []T) {
	if len(errs) == 0 {
		return
	}
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "%s\n", e)
	}
	os.Exit(1)
}

func cmdMTAList(c *cmd) {
	c.help = "List configured MTAs."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	l, err := cl.MTAList(context.Background())
	xcheckf(err, "listing mtas")
	for _, r := range l {
		proxy := "-"
		if r.UseProxy != nil {
			proxy = strconv.FormatInt(*r.UseProxy, 10)
		}
		fmt.Printf("%d\t%s:%d\t%s\t%s\tproxy=%s\t%s\n", r.ID, r.Host, r.Port, r.Encryption, r.Username, proxy, r.Description)
	}
}

// mtaFlags registers the shared MTA editor flags and returns a function that
// assembles and validates the form.
func mtaFlags(c *cmd, mode mta.Mode) func() mta.Request {
	var f mta.Form
	var proxyID int64
	c.flag.StringVar(&f.Host, "host", "", "SMTP server hostname")
	c.flag.IntVar(&f.Port, "port", 587, "SMTP server port, not 80 or 443")
	enc := c.flag.String("encryption", string(mta.EncryptionStartTLS), "transport security: None, Ssl or StartTls")
	c.flag.StringVar(&f.Username, "username", "", "SMTP authentication username")
	c.flag.StringVar(&f.Password, "password", "", "SMTP authentication password; on update, empty keeps the stored password")
	c.flag.StringVar(&f.Description, "description", "", "optional description")
	c.flag.Int64Var(&proxyID, "proxy", 0, "id of a registered SOCKS5 proxy to connect through, 0 for a direct connection")
	c.flag.BoolVar(&f.DSNCapable, "dsn", false, "whether the server supports delivery status notifications")
	return func() mta.Request {
		f.Encryption = mta.Encryption(*enc)
		if proxyID != 0 {
			f.UseProxy = &proxyID
		}
		xfieldErrs(f.Validate(mode))
		return f.Submit()
	}
}

func cmdMTAAdd(c *cmd) {
	form := mtaFlags(c, mta.ModeCreate)
	c.params = "-host host -username user -password pass [flags]"
	c.help = "Register an MTA for outbound mail."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	req := form()
	cl, _, cleanup := xclient(c)
	defer cleanup()
	r, err := cl.MTACreate(context.Background(), req)
	xcheckf(err, "creating mta")
	fmt.Printf("%d\n", r.ID)
}

func cmdMTAUpdate(c *cmd) {
	form := mtaFlags(c, mta.ModeUpdate)
	c.params = "id -host host -username user [flags]"
	c.help = "Update an MTA. An empty -password keeps the stored password."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	req := form()
	cl, _, cleanup := xclient(c)
	defer cleanup()
	r, err := cl.MTAUpdate(context.Background(), xparseID(args[0], "mta id"), req)
	xcheckf(err, "updating mta")
	xprintJSON(r)
}

func cmdMTARm(c *cmd) {
	c.params = "id"
	c.help = "Delete an MTA."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.MTADelete(context.Background(), xparseID(args[0], "mta id"))
	xcheckf(err, "deleting mta")
}

func cmdMTASendTest(c *cmd) {
	c.params = "id address"
	c.help = "Send a test message through an MTA to verify its settings."
	args := c.Parse()
	if len(args) != 2 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.MTASendTest(context.Background(), xparseID(args[0], "mta id"), mta.SendTestRequest{To: args[1]})
	xcheckf(err, "sending test message")
	fmt.Println("test message submitted")
}

func cmdOAuth2List(c *cmd) {
	c.help = "List OAuth2 client registrations."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	l, err := cl.OAuth2List(context.Background())
	xcheckf(err, "listing oauth2 clients")
	for _, e := range l {
		enabled := "disabled"
		if e.Enabled {
			enabled = "enabled"
		}
		fmt.Printf("%d\t%s\t%s\t%s\t%s\n", e.ID, enabled, e.ClientID, e.AuthURL, e.Description)
	}
}

func oauth2Flags(c *cmd, mode oauth2client.Mode) func() oauth2client.Request {
	var f oauth2client.Form
	var provider, scopes, extras string
	var proxyID int64
	c.flag.StringVar(&provider, "preset", "", "fill provider defaults first: gmail or outlook")
	c.flag.StringVar(&f.ClientID, "clientid", "", "OAuth2 client id")
	c.flag.StringVar(&f.ClientSecret, "clientsecret", "", "OAuth2 client secret; on update, empty keeps the stored secret")
	c.flag.StringVar(&f.AuthURL, "authurl", "", "authorization endpoint, absolute http(s) URL")
	c.flag.StringVar(&f.TokenURL, "tokenurl", "", "token endpoint, absolute http(s) URL")
	c.flag.StringVar(&f.RedirectURI, "redirecturi", "", "redirect URI, must end with path "+oauth2client.CallbackPath)
	c.flag.StringVar(&scopes, "scopes", "", "comma-separated scopes, order preserved")
	c.flag.StringVar(&extras, "extras", "", "comma-separated key=value pairs sent as extra authorization parameters")
	c.flag.StringVar(&f.Description, "description", "", "optional description")
	c.flag.BoolVar(&f.Enabled, "enabled", true, "disabling rejects new flows and revokes existing tokens within a minute")
	c.flag.Int64Var(&proxyID, "proxy", 0, "id of a registered SOCKS5 proxy for provider requests, 0 for direct")
	return func() oauth2client.Request {
		if provider != "" && !f.Preset(provider) {
			xcheckf(fmt.Errorf("unknown provider %q", provider), "applying preset")
		}
		f.Scopes = append(f.Scopes, splitComma(scopes)...)
		for _, kv := range splitComma(extras) {
			k, v, ok := cutKV(kv)
			if !ok {
				xcheckf(fmt.Errorf("bad extra parameter %q, use key=value", kv), "parsing extras")
			}
			f.ExtraParams = append(f.ExtraParams, oauth2client.Param{Key: k, Value: v})
		}
		xfieldErrs(f.Validate(mode))
		return f.Submit(mode)
	}
}

func cmdOAuth2Add(c *cmd) {
	form := oauth2Flags(c, oauth2client.ModeCreate)
	c.params = "[-preset gmail|outlook] -clientid id -clientsecret secret -redirecturi uri [flags]"
	c.help = `Register an OAuth2 client.

With -preset, the provider's endpoints, scopes and extra parameters are filled
in first; explicit flags extend them. The redirect URI must use the fixed path
` + oauth2client.CallbackPath + ` on the deploying origin.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	req := form()
	cl, _, cleanup := xclient(c)
	defer cleanup()
	e, err := cl.OAuth2Create(context.Background(), req)
	xcheckf(err, "creating oauth2 client")
	fmt.Printf("%d\n", e.ID)
}

func cmdOAuth2Update(c *cmd) {
	form := oauth2Flags(c, oauth2client.ModeUpdate)
	c.params = "id [flags]"
	c.help = "Update an OAuth2 client. An empty -clientsecret keeps the stored secret."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	req := form()
	cl, _, cleanup := xclient(c)
	defer cleanup()
	e, err := cl.OAuth2Update(context.Background(), xparseID(args[0], "oauth2 id"), req)
	xcheckf(err, "updating oauth2 client")
	xprintJSON(e)
}

func cmdOAuth2Rm(c *cmd) {
	c.params = "id"
	c.help = "Delete an OAuth2 client registration."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.OAuth2Delete(context.Background(), xparseID(args[0], "oauth2 id"))
	xcheckf(err, "deleting oauth2 client")
}

func cmdOAuth2AuthURL(c *cmd) {
	var state string
	c.flag.StringVar(&state, "state", "", "opaque state passed through the authorization flow")
	c.params = "oauth2id accountid"
	c.help = "Print the provider authorization URL for an account."
	args := c.Parse()
	if len(args) != 2 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	u, err := cl.OAuth2AuthorizeURL(context.Background(), client.AuthorizeURLRequest{
		OAuth2ID:  xparseID(args[0], "oauth2 id"),
		AccountID: xparseID(args[1], "account id"),
		State:     state,
	})
	xcheckf(err, "fetching authorization url")
	fmt.Println(u)
}

func cmdOAuth2Tokens(c *cmd) {
	c.params = "accountid"
	c.help = "Show the stored OAuth2 token state for an account. Secrets are redacted."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	t, err := cl.OAuth2TokensStatus(context.Background(), xparseID(args[0], "account id"))
	xcheckf(err, "fetching token state")
	fmt.Printf("access token: %v\nrefresh token: %v\n", t.HasAccessToken, t.HasRefreshToken)
	if t.ExpiresAt > 0 {
		fmt.Printf("expires: %s\n", time.UnixMilli(t.ExpiresAt).Format(time.RFC3339))
	}
}

func cmdProxyList(c *cmd) {
	c.help = "List registered SOCKS5 proxies."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	l, err := cl.ProxyList(context.Background())
	xcheckf(err, "listing proxies")
	for _, r := range l {
		fmt.Printf("%d\t%s\n", r.ID, r.URL)
	}
}

func cmdProxyAdd(c *cmd) {
	c.params = "url"
	c.help = `Register a SOCKS5 proxy.

The URL must use scheme socks5:// or socks5h:// with a host:port, e.g.
socks5://127.0.0.1:1080. It is validated locally before submission.
`
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.ProxyCreate(context.Background(), args[0])
	xcheckf(err, "creating proxy")
}

func cmdProxyUpdate(c *cmd) {
	c.params = "id url"
	c.help = "Update a SOCKS5 proxy URL."
	args := c.Parse()
	if len(args) != 2 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.ProxyUpdate(context.Background(), xparseID(args[0], "proxy id"), args[1])
	xcheckf(err, "updating proxy")
}

func cmdProxyRm(c *cmd) {
	c.help = `Delete a SOCKS5 proxy.

MTAs and OAuth2 clients still referencing the deleted proxy fall back to
direct connections; review them after removal.
`
	c.params = "id"
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	id := xparseID(args[0], "proxy id")
	err := cl.ProxyDelete(context.Background(), id)
	xcheckf(err, "deleting proxy")

	// Point out registrations that still reference the deleted proxy.
	entities, err := cl.OAuth2List(context.Background())
	if err == nil {
		known := map[int64]bool{}
		if proxies, perr := cl.ProxyList(context.Background()); perr == nil {
			for _, p := range proxies {
				known[p.ID] = true
			}
		}
		for _, did := range oauth2client.DanglingProxies(entities, known) {
			fmt.Fprintf(os.Stderr, "warning: oauth2 client %d references a proxy that no longer exists\n", did)
		}
	}
}

func splitComma(s string) []string {
	var l []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			l = append(l, e)
		}
	}
	return l
}

func cutKV(s string) (string, string, bool) {
	k, v, ok := strings.Cut(s, "=")
	return strings.TrimSpace(k), strings.TrimSpace(v), ok
}
