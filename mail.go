package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sparklive/rustmailerctl/client"
	"github.com/sparklive/rustmailerctl/envelope"
)

func cmdMailboxList(c *cmd) {
	var remote bool
	c.flag.BoolVar(&remote, "remote", false, "list mailboxes live from the mail server instead of the local envelope store")
	c.params = "[-remote] account"
	c.help = "List the mailboxes of an account with message counts."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	l, err := cl.ListMailboxes(context.Background(), args[0], remote)
	xcheckf(err, "listing mailboxes")
	for _, mb := range l {
		sel := ""
		if mb.NoSelect() {
			sel = "\t(noselect)"
		}
		fmt.Printf("%s\t%d total\t%d unseen%s\n", mb.Name, mb.Total, mb.Unseen, sel)
	}
}

func xparseUIDs(s string) []uint32 {
	var uids []uint32
	for _, e := range splitComma(s) {
		n, err := strconv.ParseUint(e, 10, 32)
		xcheckf(err, "parsing uid %q", e)
		uids = append(uids, uint32(n))
	}
	if len(uids) == 0 {
		xcheckf(envelope.ErrNoUIDs, "parsing uids")
	}
	return uids
}

func printEnvelopes(page client.MessagePage) {
	for _, e := range page.Items {
		from := ""
		if len(e.From) > 0 {
			from = e.From[0].Address
		}
		var flags []string
		for _, f := range e.Flags {
			flags = append(flags, f.Name())
		}
		fmt.Printf("%d\t%s\t%s\t%s\t%s\n", e.UID, e.Date.Format("2006-01-02 15:04"), from, e.Subject, strings.Join(flags, ","))
	}
	if page.NextPageToken != "" {
		fmt.Printf("(more, continue with -cursor %s)\n", page.NextPageToken)
	}
}

func cmdMessageList(c *cmd) {
	var mailbox, cursor string
	var pageSize int
	var remote bool
	c.flag.StringVar(&mailbox, "mailbox", "INBOX", "mailbox to list")
	c.flag.IntVar(&pageSize, "pagesize", 50, "number of messages per page")
	c.flag.BoolVar(&remote, "remote", false, "list live from the mail server instead of the local envelope store")
	c.flag.StringVar(&cursor, "cursor", "", "opaque cursor from a previous page")
	c.params = "[-mailbox name] [-pagesize n] [-remote] [-cursor token] account"
	c.help = "List messages in a mailbox, newest first."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	page, err := cl.ListMessages(context.Background(), args[0], client.ListMessagesRequest{
		Mailbox:       mailbox,
		PageSize:      pageSize,
		Remote:        remote,
		NextPageToken: cursor,
	})
	xcheckf(err, "listing messages")
	printEnvelopes(page)
}

func cmdMessageSearch(c *cmd) {
	var mailbox, filterJSON, cursor string
	var pageSize int
	var remote bool
	c.flag.StringVar(&mailbox, "mailbox", "INBOX", "mailbox to search")
	c.flag.StringVar(&filterJSON, "filter", "", `filter as JSON, e.g. {"operator":"and","conditions":[{"field":"From","operator":"is","value":"alice"}]}; "-" reads it from stdin`)
	c.flag.IntVar(&pageSize, "pagesize", 50, "number of messages per page")
	c.flag.BoolVar(&remote, "remote", false, "search live on the mail server; enables the flag and size fields")
	c.flag.StringVar(&cursor, "cursor", "", "opaque cursor from a previous page")
	c.params = "-filter json [-mailbox name] [-remote] account"
	c.help = `Search messages with an envelope filter.

A filter combines conditions on envelope fields with "and" or "or". Date
fields take YYYY-MM-DD values. The flag fields (Seen, Unseen) and the size and
UID fields are only available with -remote, where the search runs on the mail
server itself.
`
	args := c.Parse()
	if len(args) != 1 || filterJSON == "" {
		c.Usage()
	}

	if filterJSON == "-" {
		buf, err := io.ReadAll(os.Stdin)
		xcheckf(err, "reading filter from stdin")
		filterJSON = string(buf)
	}
	var filter envelope.Filter
	err := json.Unmarshal([]byte(filterJSON), &filter)
	xcheckf(err, "parsing filter")
	mode := envelope.ModeLocal
	if remote {
		mode = envelope.ModeRemote
	}
	if errs := filter.Validate(mode); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", e.Path, e.Message)
		}
		os.Exit(1)
	}

	cl, _, cleanup := xclient(c)
	defer cleanup()
	page, err := cl.SearchMessages(context.Background(), args[0], mailbox, remote, filter, pageSize, cursor)
	xcheckf(err, "searching messages")
	printEnvelopes(page)
}

func cmdMessageContent(c *cmd) {
	var mailbox string
	var html bool
	c.flag.StringVar(&mailbox, "mailbox", "INBOX", "mailbox holding the message")
	c.flag.BoolVar(&html, "html", false, "print the html part instead of the plain text part")
	c.params = "[-mailbox name] account uid"
	c.help = "Print the rendered body of a message."
	args := c.Parse()
	if len(args) != 2 {
		c.Usage()
	}
	uid, err := strconv.ParseUint(args[1], 10, 32)
	xcheckf(err, "parsing uid")

	cl, _, cleanup := xclient(c)
	defer cleanup()
	content, err := cl.MessageContent(context.Background(), args[0], client.MessageRef{Mailbox: mailbox, UID: uint32(uid)})
	xcheckf(err, "fetching message content")
	if html {
		fmt.Println(content.HTML)
	} else {
		fmt.Println(content.Plain)
	}
}

func cmdMessageExport(c *cmd) {
	var mailbox, attachment string
	c.flag.StringVar(&mailbox, "mailbox", "INBOX", "mailbox holding the message")
	c.flag.StringVar(&attachment, "attachment", "", "download a single attachment by filename instead of the raw message")
	c.params = "[-mailbox name] [-attachment filename] account uid"
	c.help = "Write the raw message, or one attachment, to stdout."
	args := c.Parse()
	if len(args) != 2 {
		c.Usage()
	}
	uid, err := strconv.ParseUint(args[1], 10, 32)
	xcheckf(err, "parsing uid")

	cl, _, cleanup := xclient(c)
	defer cleanup()
	var rc io.ReadCloser
	if attachment != "" {
		rc, err = cl.MessageAttachment(context.Background(), args[0], client.AttachmentRequest{Mailbox: mailbox, UID: uint32(uid), Filename: attachment})
		xcheckf(err, "fetching attachment")
	} else {
		rc, err = cl.FullMessage(context.Background(), args[0], mailbox, uint32(uid))
		xcheckf(err, "fetching message")
	}
	defer rc.Close()
	_, err = io.Copy(os.Stdout, rc)
	xcheckf(err, "writing to stdout")
}

// xstageFlags parses comma-separated flag names into a mutation. A name
// prefixed with "custom:" stages a custom keyword.
func xstageFlags(m *envelope.FlagMutation, s string) {
	for _, name := range splitComma(s) {
		f := envelope.Flag{Flag: name}
		if cname, ok := strings.CutPrefix(name, "custom:"); ok {
			f = envelope.Custom(cname)
		}
		err := m.Stage(f)
		xcheckf(err, "staging flag %q", name)
	}
}

func cmdMessageFlag(c *cmd) {
	var mailbox, uids, action string
	c.flag.StringVar(&mailbox, "mailbox", "INBOX", "mailbox holding the messages")
	c.flag.StringVar(&uids, "uids", "", "comma-separated message uids")
	c.flag.StringVar(&action, "action", string(envelope.FlagAdd), "add, remove or overwrite")
	c.params = "-uids uid[,...] [-action add|remove|overwrite] account flag[,...]"
	c.help = `Change message flags.

Flags are the standard IMAP names (Seen, Answered, Flagged, Deleted, Draft,
Recent) or custom keywords written as custom:$Name. With -action overwrite,
the full flag set of each message is replaced.
`
	args := c.Parse()
	if len(args) != 2 || uids == "" {
		c.Usage()
	}

	m := envelope.NewFlagMutation(envelope.FlagAction(action), mailbox)
	xstageFlags(m, args[1])
	m.SetUIDs(xparseUIDs(uids))
	req, err := m.Request()
	xcheckf(err, "building flag request")

	cl, _, cleanup := xclient(c)
	defer cleanup()
	err = cl.FlagMessages(context.Background(), args[0], req)
	xcheckf(err, "flagging messages")
}

func xcompose(c *cmd, forward bool) {
	var mailbox, to, cc, bcc string
	c.flag.StringVar(&mailbox, "mailbox", "INBOX", "mailbox holding the original message")
	c.flag.StringVar(&to, "to", "", "comma-separated recipient addresses")
	c.flag.StringVar(&cc, "cc", "", "comma-separated cc addresses")
	c.flag.StringVar(&bcc, "bcc", "", "comma-separated bcc addresses")
	c.params = "-to addr[,...] [-mailbox name] account uid"
	args := c.Parse()
	if len(args) != 2 || to == "" {
		c.Usage()
	}
	uid, err := strconv.ParseUint(args[1], 10, 32)
	xcheckf(err, "parsing uid")
	text, err := io.ReadAll(os.Stdin)
	xcheckf(err, "reading message text from stdin")

	req := client.ComposeRequest{
		Mailbox: mailbox,
		UID:     uint32(uid),
		To:      splitComma(to),
		Cc:      splitComma(cc),
		Bcc:     splitComma(bcc),
		Text:    string(text),
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	if forward {
		err = cl.ForwardMail(context.Background(), args[0], req)
		xcheckf(err, "forwarding")
	} else {
		err = cl.ReplyMail(context.Background(), args[0], req)
		xcheckf(err, "replying")
	}
}

func cmdMessageReply(c *cmd) {
	c.help = `Reply to a message.

The reply text is read from stdin. The backend renders quoting and
attribution.
`
	xcompose(c, false)
}

func cmdMessageForward(c *cmd) {
	c.help = `Forward a message.

The accompanying text is read from stdin. The original message is attached by
the backend.
`
	xcompose(c, true)
}

func cmdMessageMove(c *cmd) {
	var mailbox, uids string
	c.flag.StringVar(&mailbox, "mailbox", "INBOX", "mailbox holding the messages")
	c.flag.StringVar(&uids, "uids", "", "comma-separated message uids")
	c.params = "-uids uid[,...] [-mailbox name] account targetmailbox"
	c.help = "Move messages to another mailbox."
	args := c.Parse()
	if len(args) != 2 || uids == "" {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.MoveMessages(context.Background(), args[0], client.MoveMessagesRequest{
		UIDs:          xparseUIDs(uids),
		Mailbox:       mailbox,
		TargetMailbox: args[1],
	})
	xcheckf(err, "moving messages")
}

func cmdMessageRm(c *cmd) {
	var mailbox, uids string
	c.flag.StringVar(&mailbox, "mailbox", "INBOX", "mailbox holding the messages")
	c.flag.StringVar(&uids, "uids", "", "comma-separated message uids")
	c.params = "-uids uid[,...] [-mailbox name] account"
	c.help = "Delete messages."
	args := c.Parse()
	if len(args) != 1 || uids == "" {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.DeleteMessages(context.Background(), args[0], client.UIDListRequest{
		UIDs:    xparseUIDs(uids),
		Mailbox: mailbox,
	})
	xcheckf(err, "deleting messages")
}
