package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sparklive/rustmailerctl/notify"
	"github.com/sparklive/rustmailerctl/tasks"
)

func taskPageFlags(c *cmd) func() tasks.Page {
	var page, pageSize int
	var status string
	c.flag.IntVar(&page, "page", 0, "page number, first page is 0")
	c.flag.IntVar(&pageSize, "pagesize", 50, "number of tasks per page")
	c.flag.StringVar(&status, "status", "", "filter by status: Scheduled, Running, Success, Failed, Removed or Stopped")
	return func() tasks.Page {
		p := tasks.Page{Index: page, Size: pageSize}
		if status != "" {
			s := tasks.Status(status)
			var known bool
			for _, x := range tasks.Statuses() {
				if s == x {
					known = true
					break
				}
			}
			if !known {
				xcheckf(fmt.Errorf("unknown status %q", status), "parsing status filter")
			}
			p.Status = &s
		}
		return p
	}
}

func cmdTasksEmailList(c *cmd) {
	xpage := taskPageFlags(c)
	c.params = "[-page n] [-pagesize n] [-status status]"
	c.help = "List queued outbound email tasks, newest first."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	l, err := cl.EmailTasks(context.Background(), xpage())
	xcheckf(err, "listing email tasks")
	for _, t := range l.Items {
		extra := t.LastError
		if t.Status == tasks.StatusStopped && t.StoppedReason != "" {
			extra = t.StoppedReason
		}
		fmt.Printf("%d\t%s\taccount %d\t%s\t%s\n", t.ID, t.Status, t.AccountID, t.Subject, extra)
	}
	fmt.Printf("(page %d, %d total)\n", l.Page, l.TotalItems)
}

func cmdTasksEmailRm(c *cmd) {
	c.params = "id"
	c.help = "Delete an email task. Running tasks are stopped."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.EmailTaskDelete(context.Background(), xparseID(args[0], "task id"))
	xcheckf(err, "deleting email task")
}

func cmdTasksHookList(c *cmd) {
	xpage := taskPageFlags(c)
	c.params = "[-page n] [-pagesize n] [-status status]"
	c.help = "List queued event hook deliveries, newest first."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	l, err := cl.HookTasks(context.Background(), xpage())
	xcheckf(err, "listing hook tasks")
	for _, t := range l.Items {
		fmt.Printf("%d\t%s\t%s\t%s\n", t.ID, t.Status, t.Event, t.URL)
	}
	fmt.Printf("(page %d, %d total)\n", l.Page, l.TotalItems)
}

func cmdTasksHookRm(c *cmd) {
	c.params = "id"
	c.help = "Delete an event hook task."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err := cl.HookTaskDelete(context.Background(), xparseID(args[0], "task id"))
	xcheckf(err, "deleting hook task")
}

func cmdNotifications(c *cmd) {
	var notes bool
	c.flag.BoolVar(&notes, "notes", false, "also print the release notes of a newer release, rendered from markdown")
	c.help = `Show pending notifications: license state and new releases.

License warnings appear within 30 days of expiry. A release notification
appears when the backend reports a version newer than the one running. The
last seen release is remembered, so repeated runs stay quiet for a release
already shown unless -notes is given.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, st, cleanup := xclient(c)
	defer cleanup()
	ctx := context.Background()
	snap, err := cl.Notifications(ctx)
	xcheckf(err, "fetching notifications")

	l := notify.Aggregate(snap)
	count, critical := notify.Badge(l)
	if count == 0 {
		fmt.Println("no notifications")
		return
	}
	if critical {
		fmt.Printf("%d notifications (critical)\n", count)
	} else {
		fmt.Printf("%d notifications\n", count)
	}
	lastKnown, err := st.LastKnown(ctx)
	if err != nil {
		c.log.Errorx("reading last known release", err)
	}
	for _, n := range l {
		fmt.Printf("%s\t%s\t%s\n", n.Severity, n.Kind, n.Message)
		if n.Kind != notify.KindRelease {
			continue
		}
		if snap.Release.Latest != lastKnown {
			err := st.StoreLastKnown(ctx, snap.Release.Latest)
			if err != nil {
				c.log.Errorx("storing last known release", err)
			}
		} else if !notes {
			fmt.Println("(already seen, use -notes for the release notes)")
		}
		if notes && snap.Release.Notes != "" {
			os.Stdout.Write(notify.RenderNotes(snap.Release.Notes))
		}
	}
}

func cmdOverview(c *cmd) {
	c.help = "Show the backend dashboard counters."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	o, err := cl.Overview(context.Background())
	xcheckf(err, "fetching overview")
	fmt.Printf("version:\t%s\n", o.Version)
	fmt.Printf("uptime:\t%s\n", (time.Duration(o.Uptime) * time.Second))
	fmt.Printf("accounts:\t%d\n", o.Accounts)
	fmt.Printf("mailboxes:\t%d\n", o.Mailboxes)
	fmt.Printf("messages:\t%d\n", o.Messages)
	fmt.Printf("pending tasks:\t%d\n", o.PendingTasks)
	fmt.Printf("failed tasks:\t%d\n", o.FailedTasks)
	fmt.Printf("event hooks:\t%d\n", o.EventHooks)
}

func cmdLicense(c *cmd) {
	c.help = "Show the current license state."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	lic, err := cl.License(context.Background())
	xcheckf(err, "fetching license")
	if lic.Expired {
		fmt.Println("license EXPIRED")
	} else if lic.ExpiresAt > 0 {
		fmt.Printf("license valid, expires %s (%d days)\n", time.UnixMilli(lic.ExpiresAt).Format(time.RFC3339), lic.Days)
	} else {
		fmt.Println("license valid")
	}
}

func cmdLicenseSet(c *cmd) {
	c.params = "< licensefile"
	c.help = "Install a license key, read from stdin."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	buf, err := io.ReadAll(os.Stdin)
	xcheckf(err, "reading license from stdin")
	license := strings.TrimSpace(string(buf))
	if license == "" {
		xcheckf(fmt.Errorf("empty license"), "reading license")
	}
	cl, _, cleanup := xclient(c)
	defer cleanup()
	err = cl.SetLicense(context.Background(), license)
	xcheckf(err, "installing license")
}
