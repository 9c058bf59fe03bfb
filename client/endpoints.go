package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sparklive/rustmailerctl/accesstoken"
	"github.com/sparklive/rustmailerctl/envelope"
	"github.com/sparklive/rustmailerctl/mta"
	"github.com/sparklive/rustmailerctl/notify"
	"github.com/sparklive/rustmailerctl/oauth2client"
	"github.com/sparklive/rustmailerctl/querycache"
	"github.com/sparklive/rustmailerctl/socksproxy"
	"github.com/sparklive/rustmailerctl/tasks"
)

// Cache key prefixes. Mutations invalidate the prefix of the resource they
// touch.
var (
	keyAccessTokens  = querycache.Key{"access-tokens"}
	keyMTAs          = querycache.Key{"mta"}
	keyOAuth2        = querycache.Key{"oauth2"}
	keyMessages      = querycache.Key{"messages"}
	keyTasks         = querycache.Key{"tasks"}
	keyProxies       = querycache.Key{"proxies"}
	keyNotifications = querycache.Key{"notifications"}
	keyOverview      = querycache.Key{"overview"}
)

// Login exchanges the root password for a session. The returned token is
// written to the credential store.
func (c *Client) Login(ctx context.Context, password string) error {
	token, err := transactText(ctx, c, http.MethodPost, "/api/login", nil, password)
	if err != nil {
		return err
	}
	return c.Creds.SetToken(ctx, token)
}

// Logout clears the credential store and flushes cached queries. The backend
// holds no session state beyond the token itself.
func (c *Client) Logout(ctx context.Context) error {
	if c.Cache != nil {
		c.Cache.Flush()
	}
	return c.Creds.SetToken(ctx, "")
}

// ResetRootToken invalidates the current root token server-side and returns
// the replacement. The credential store is updated with the new token.
func (c *Client) ResetRootToken(ctx context.Context) (string, error) {
	resp, err := transact[struct {
		Token string `json:"token"`
	}](ctx, c, http.MethodPost, "/api/v1/reset-root-token", nil, nil)
	if err != nil {
		return "", err
	}
	if err := c.Creds.SetToken(ctx, resp.Token); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ResetRootPassword sets a new root password, submitted as text/plain.
func (c *Client) ResetRootPassword(ctx context.Context, password string) error {
	_, err := transactText(ctx, c, http.MethodPost, "/api/v1/reset-root-password", nil, password)
	return err
}

// Access tokens.

func (c *Client) AccessTokenList(ctx context.Context) ([]accesstoken.AccessToken, error) {
	return fetch(ctx, c, keyAccessTokens, querycache.StaleDefault, func(ctx context.Context) ([]accesstoken.AccessToken, error) {
		return transact[[]accesstoken.AccessToken](ctx, c, http.MethodGet, "/api/v1/access-token-list", nil, nil)
	})
}

func (c *Client) AccessTokenCreate(ctx context.Context, req accesstoken.Request) (accesstoken.AccessToken, error) {
	defer c.invalidate(keyAccessTokens)
	return transact[accesstoken.AccessToken](ctx, c, http.MethodPost, "/api/v1/access-token", nil, req)
}

func (c *Client) AccessTokenUpdate(ctx context.Context, token string, req accesstoken.Request) (accesstoken.AccessToken, error) {
	defer c.invalidate(keyAccessTokens)
	return transact[accesstoken.AccessToken](ctx, c, http.MethodPost, "/api/v1/access-token/"+url.PathEscape(token), nil, req)
}

func (c *Client) AccessTokenDelete(ctx context.Context, token string) error {
	defer c.invalidate(keyAccessTokens)
	_, err := transact[struct{}](ctx, c, http.MethodDelete, "/api/v1/access-token/"+url.PathEscape(token), nil, nil)
	return err
}

// MTAs.

func (c *Client) MTAList(ctx context.Context) ([]mta.Record, error) {
	return fetch(ctx, c, keyMTAs, querycache.StaleDefault, func(ctx context.Context) ([]mta.Record, error) {
		return transact[[]mta.Record](ctx, c, http.MethodGet, "/api/v1/list-mta", nil, nil)
	})
}

func (c *Client) MTACreate(ctx context.Context, req mta.Request) (mta.Record, error) {
	defer c.invalidate(keyMTAs)
	return transact[mta.Record](ctx, c, http.MethodPost, "/api/v1/mta", nil, req)
}

func (c *Client) MTAUpdate(ctx context.Context, id int64, req mta.Request) (mta.Record, error) {
	defer c.invalidate(keyMTAs)
	return transact[mta.Record](ctx, c, http.MethodPost, "/api/v1/mta/"+strconv.FormatInt(id, 10), nil, req)
}

func (c *Client) MTADelete(ctx context.Context, id int64) error {
	defer c.invalidate(keyMTAs)
	_, err := transact[struct{}](ctx, c, http.MethodDelete, "/api/v1/mta/"+strconv.FormatInt(id, 10), nil, nil)
	return err
}

// MTASendTest asks the backend to deliver a test message through an MTA.
func (c *Client) MTASendTest(ctx context.Context, id int64, req mta.SendTestRequest) error {
	_, err := transact[struct{}](ctx, c, http.MethodPost, "/api/v1/mta-send-test/"+strconv.FormatInt(id, 10), nil, req)
	return err
}

// OAuth2 clients.

func (c *Client) OAuth2List(ctx context.Context) ([]oauth2client.Entity, error) {
	return fetch(ctx, c, keyOAuth2, querycache.StaleDefault, func(ctx context.Context) ([]oauth2client.Entity, error) {
		return transact[[]oauth2client.Entity](ctx, c, http.MethodGet, "/api/v1/oauth2-list", nil, nil)
	})
}

func (c *Client) OAuth2Create(ctx context.Context, req oauth2client.Request) (oauth2client.Entity, error) {
	defer c.invalidate(keyOAuth2)
	return transact[oauth2client.Entity](ctx, c, http.MethodPost, "/api/v1/oauth2", nil, req)
}

func (c *Client) OAuth2Update(ctx context.Context, id int64, req oauth2client.Request) (oauth2client.Entity, error) {
	defer c.invalidate(keyOAuth2)
	return transact[oauth2client.Entity](ctx, c, http.MethodPost, "/api/v1/oauth2/"+strconv.FormatInt(id, 10), nil, req)
}

func (c *Client) OAuth2Delete(ctx context.Context, id int64) error {
	defer c.invalidate(keyOAuth2)
	_, err := transact[struct{}](ctx, c, http.MethodDelete, "/api/v1/oauth2/"+strconv.FormatInt(id, 10), nil, nil)
	return err
}

// AuthorizeURLRequest asks for the provider authorization URL for an account
// and OAuth2 client pair.
type AuthorizeURLRequest struct {
	OAuth2ID  int64  `json:"oauth2_id"`
	AccountID int64  `json:"account_id"`
	State     string `json:"state,omitempty"`
}

func (c *Client) OAuth2AuthorizeURL(ctx context.Context, req AuthorizeURLRequest) (string, error) {
	resp, err := transact[struct {
		URL string `json:"url"`
	}](ctx, c, http.MethodPost, "/api/v1/oauth2-authorize-url", nil, req)
	return resp.URL, err
}

// OAuth2Tokens is the stored token state for one account, secrets redacted.
type OAuth2Tokens struct {
	AccountID       int64 `json:"account_id"`
	HasAccessToken  bool  `json:"has_access_token"`
	HasRefreshToken bool  `json:"has_refresh_token"`
	ExpiresAt       int64 `json:"expires_at,omitempty"`
	UpdatedAt       int64 `json:"updated_at"`
}

func (c *Client) OAuth2TokensStatus(ctx context.Context, accountID int64) (OAuth2Tokens, error) {
	return transact[OAuth2Tokens](ctx, c, http.MethodGet, "/api/v1/oauth2-tokens/"+strconv.FormatInt(accountID, 10), nil, nil)
}

// Mail.

// MessagePage is one page of message envelopes. The cursor is opaque; an
// empty cursor means the listing is exhausted.
type MessagePage struct {
	Items         []envelope.Envelope `json:"items"`
	NextPageToken string              `json:"next_page_token,omitempty"`
}

// ListMessagesRequest pages through a mailbox, newest first.
type ListMessagesRequest struct {
	Mailbox       string
	PageSize      int
	Remote        bool
	NextPageToken string
}

func (r ListMessagesRequest) values() url.Values {
	v := url.Values{}
	v.Set("mailbox", r.Mailbox)
	v.Set("page_size", strconv.Itoa(r.PageSize))
	v.Set("desc", "true")
	v.Set("remote", strconv.FormatBool(r.Remote))
	if r.NextPageToken != "" {
		v.Set("next_page_token", r.NextPageToken)
	}
	return v
}

func (c *Client) ListMailboxes(ctx context.Context, account string, remote bool) ([]envelope.Mailbox, error) {
	key := querycache.Key{"mailboxes", account, strconv.FormatBool(remote)}
	return fetch(ctx, c, key, querycache.StaleDefault, func(ctx context.Context) ([]envelope.Mailbox, error) {
		q := url.Values{"remote": []string{strconv.FormatBool(remote)}}
		return transact[[]envelope.Mailbox](ctx, c, http.MethodGet, "/api/v1/list-mailboxes/"+url.PathEscape(account), q, nil)
	})
}

func (c *Client) ListMessages(ctx context.Context, account string, req ListMessagesRequest) (MessagePage, error) {
	key := querycache.Key{"messages", account, req.Mailbox, strconv.FormatBool(req.Remote), req.NextPageToken}
	return fetch(ctx, c, key, querycache.StaleDefault, func(ctx context.Context) (MessagePage, error) {
		return transact[MessagePage](ctx, c, http.MethodGet, "/api/v1/list-messages/"+url.PathEscape(account), req.values(), nil)
	})
}

// SearchMessages evaluates a validated filter. The mode to validate against
// follows from where the search runs: remote searches go to the mail server,
// local ones against the backend's envelope store.
func (c *Client) SearchMessages(ctx context.Context, account string, mailbox string, remote bool, filter envelope.Filter, pageSize int, nextPageToken string) (MessagePage, error) {
	q := url.Values{}
	q.Set("mailbox", mailbox)
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("desc", "true")
	q.Set("remote", strconv.FormatBool(remote))
	if nextPageToken != "" {
		q.Set("next_page_token", nextPageToken)
	}
	return transact[MessagePage](ctx, c, http.MethodPost, "/api/v1/search-message/"+url.PathEscape(account), q, filter)
}

// MessageRef names one message by mailbox and UID.
type MessageRef struct {
	Mailbox string `json:"mailbox"`
	UID     uint32 `json:"uid"`
}

// MessageContent is the rendered message body.
type MessageContent struct {
	Plain string `json:"plain,omitempty"`
	HTML  string `json:"html,omitempty"`
}

func (c *Client) MessageContent(ctx context.Context, account string, ref MessageRef) (MessageContent, error) {
	return transact[MessageContent](ctx, c, http.MethodPost, "/api/v1/message-content/"+url.PathEscape(account), nil, ref)
}

// AttachmentRequest names one attachment within a message.
type AttachmentRequest struct {
	Mailbox  string `json:"mailbox"`
	UID      uint32 `json:"uid"`
	Filename string `json:"filename"`
}

// MessageAttachment downloads a single attachment as an opaque blob. The
// caller must close the reader.
func (c *Client) MessageAttachment(ctx context.Context, account string, req AttachmentRequest) (io.ReadCloser, error) {
	return transactBlob(ctx, c, http.MethodPost, "/api/v1/message-attachment/"+url.PathEscape(account), nil, req)
}

// FullMessage downloads the raw message as an opaque blob. The caller must
// close the reader.
func (c *Client) FullMessage(ctx context.Context, account string, mailbox string, uid uint32) (io.ReadCloser, error) {
	q := url.Values{}
	q.Set("mailbox", mailbox)
	q.Set("uid", strconv.FormatUint(uint64(uid), 10))
	return transactBlob(ctx, c, http.MethodGet, "/api/v1/full-message/"+url.PathEscape(account), q, nil)
}

// FlagMessages applies a flag mutation to messages in a mailbox.
func (c *Client) FlagMessages(ctx context.Context, account string, req envelope.FlagMessagesRequest) error {
	defer c.invalidate(keyMessages)
	_, err := transact[struct{}](ctx, c, http.MethodPost, "/api/v1/flag-messages/"+url.PathEscape(account), nil, req)
	return err
}

// UIDListRequest names messages in one mailbox by UID, for delete.
type UIDListRequest struct {
	UIDs    []uint32 `json:"uids"`
	Mailbox string   `json:"mailbox"`
}

func (c *Client) DeleteMessages(ctx context.Context, account string, req UIDListRequest) error {
	defer c.invalidate(keyMessages)
	_, err := transact[struct{}](ctx, c, http.MethodPost, "/api/v1/delete-messages/"+url.PathEscape(account), nil, req)
	return err
}

// MoveMessagesRequest moves messages from one mailbox to another.
type MoveMessagesRequest struct {
	UIDs          []uint32 `json:"uids"`
	Mailbox       string   `json:"mailbox"`
	TargetMailbox string   `json:"target_mailbox"`
}

func (c *Client) MoveMessages(ctx context.Context, account string, req MoveMessagesRequest) error {
	defer c.invalidate(keyMessages)
	_, err := transact[struct{}](ctx, c, http.MethodPost, "/api/v1/move-messages/"+url.PathEscape(account), nil, req)
	return err
}

// ComposeRequest is a reply or forward of an existing message. Text is sent
// as entered, the backend renders quoting and attribution.
type ComposeRequest struct {
	Mailbox string   `json:"mailbox"`
	UID     uint32   `json:"uid"`
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	Text    string   `json:"text"`
}

func (c *Client) ReplyMail(ctx context.Context, account string, req ComposeRequest) error {
	_, err := transact[struct{}](ctx, c, http.MethodPost, "/api/v1/reply-mail/"+url.PathEscape(account), nil, req)
	return err
}

func (c *Client) ForwardMail(ctx context.Context, account string, req ComposeRequest) error {
	_, err := transact[struct{}](ctx, c, http.MethodPost, "/api/v1/forward-mail/"+url.PathEscape(account), nil, req)
	return err
}

// Tasks.

func (c *Client) EmailTasks(ctx context.Context, page tasks.Page) (tasks.List[tasks.EmailTask], error) {
	key := querycache.Key{"tasks", "email", page.Values().Encode()}
	return fetch(ctx, c, key, querycache.StaleDefault, func(ctx context.Context) (tasks.List[tasks.EmailTask], error) {
		return transact[tasks.List[tasks.EmailTask]](ctx, c, http.MethodGet, "/api/v1/send-email-tasks", page.Values(), nil)
	})
}

func (c *Client) EmailTaskDelete(ctx context.Context, id int64) error {
	defer c.invalidate(keyTasks)
	_, err := transact[struct{}](ctx, c, http.MethodDelete, "/api/v1/send-email-task/"+strconv.FormatInt(id, 10), nil, nil)
	return err
}

func (c *Client) HookTasks(ctx context.Context, page tasks.Page) (tasks.List[tasks.EventHookTask], error) {
	key := querycache.Key{"tasks", "hook", page.Values().Encode()}
	return fetch(ctx, c, key, querycache.StaleDefault, func(ctx context.Context) (tasks.List[tasks.EventHookTask], error) {
		return transact[tasks.List[tasks.EventHookTask]](ctx, c, http.MethodGet, "/api/v1/hook-tasks", page.Values(), nil)
	})
}

func (c *Client) HookTaskDelete(ctx context.Context, id int64) error {
	defer c.invalidate(keyTasks)
	_, err := transact[struct{}](ctx, c, http.MethodDelete, "/api/v1/hook-task/"+strconv.FormatInt(id, 10), nil, nil)
	return err
}

// Status.

// Notifications fetches the server status snapshot. It changes rarely and is
// cached with a long staleness.
func (c *Client) Notifications(ctx context.Context) (notify.Snapshot, error) {
	return fetch(ctx, c, keyNotifications, querycache.StaleNotifications, func(ctx context.Context) (notify.Snapshot, error) {
		return transact[notify.Snapshot](ctx, c, http.MethodGet, "/api/v1/notifications", nil, nil)
	})
}

// Overview is the dashboard counters as the backend serves them.
type Overview struct {
	Accounts     int    `json:"accounts"`
	Mailboxes    int    `json:"mailboxes"`
	Messages     uint64 `json:"messages"`
	PendingTasks int    `json:"pending_tasks"`
	FailedTasks  int    `json:"failed_tasks"`
	EventHooks   int    `json:"event_hooks"`
	Uptime       int64  `json:"uptime"` // Seconds.
	Version      string `json:"version"`
}

func (c *Client) Overview(ctx context.Context) (Overview, error) {
	return fetch(ctx, c, keyOverview, querycache.StaleDefault, func(ctx context.Context) (Overview, error) {
		return transact[Overview](ctx, c, http.MethodGet, "/api/v1/overview", nil, nil)
	})
}

// Proxies.

func (c *Client) ProxyList(ctx context.Context) ([]socksproxy.Record, error) {
	return fetch(ctx, c, keyProxies, querycache.StaleDefault, func(ctx context.Context) ([]socksproxy.Record, error) {
		return transact[[]socksproxy.Record](ctx, c, http.MethodGet, "/api/v1/list-proxy", nil, nil)
	})
}

// ProxyCreate registers a SOCKS5 proxy. The URL is validated locally first
// and submitted as text/plain.
func (c *Client) ProxyCreate(ctx context.Context, proxyURL string) error {
	if _, err := socksproxy.ParseURL(proxyURL); err != nil {
		return err
	}
	defer c.invalidate(keyProxies)
	_, err := transactText(ctx, c, http.MethodPost, "/api/v1/proxy", nil, proxyURL)
	return err
}

func (c *Client) ProxyUpdate(ctx context.Context, id int64, proxyURL string) error {
	if _, err := socksproxy.ParseURL(proxyURL); err != nil {
		return err
	}
	defer c.invalidate(keyProxies)
	_, err := transactText(ctx, c, http.MethodPost, "/api/v1/proxy/"+strconv.FormatInt(id, 10), nil, proxyURL)
	return err
}

func (c *Client) ProxyDelete(ctx context.Context, id int64) error {
	defer c.invalidate(keyProxies)
	_, err := transact[struct{}](ctx, c, http.MethodDelete, "/api/v1/proxy/"+strconv.FormatInt(id, 10), nil, nil)
	return err
}

// SetLicense submits a license key as text/plain.
func (c *Client) SetLicense(ctx context.Context, license string) error {
	defer c.invalidate(keyNotifications)
	_, err := transactText(ctx, c, http.MethodPost, "/api/v1/license", nil, license)
	return err
}

// License fetches the current license info.
type License struct {
	Key       string `json:"key,omitempty"`
	Expired   bool   `json:"expired"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	Days      int    `json:"days"`
}

func (c *Client) License(ctx context.Context) (License, error) {
	return transact[License](ctx, c, http.MethodGet, "/api/v1/license", nil, nil)
}
