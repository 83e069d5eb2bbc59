// Package notify publishes sync run reports to NATS and emails an alert through SES when a run has
// failures.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/nats-io/nats.go"

	"github.com/BLloyd97/GCP-to-Groups/reconcile"
)

type Run struct {
	ID       string              `json:"id"`
	Started  time.Time           `json:"started"`
	Finished time.Time           `json:"finished"`
	DryRun   bool                `json:"dryrun"`
	Sets     []reconcile.Summary `json:"sets"`
	Errors   []string            `json:"errors,omitempty"`
}

func (r Run) Failed() bool {
	if len(r.Errors) > 0 {
		return true
	}

	for _, s := range r.Sets {
		if s.Failed > 0 || s.Errored > 0 {
			return true
		}
	}

	return false
}

// Message renders the run as the plain text body used for alerts.
func (r Run) Message() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Sync run %v (%v)\n\n", r.ID, r.Started.Format("2006-01-02 15:04:05"))

	for _, s := range r.Sets {
		fmt.Fprintf(&b, "%v  unchanged:%v  updated:%v  added:%v  deleted:%v  failed:%v  errors:%v\n",
			s.Group, s.Unchanged, s.Updated, s.Added, s.Deleted, s.Failed, s.Errored)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\nSync error(s):\n%s\n", strings.Join(r.Errors, "\n"))
	}

	return b.String()
}

type Nats struct {
	URL     string
	Subject string
}

func (n Nats) Publish(ctx context.Context, run Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return err
	}

	nc, err := nats.Connect(n.URL, nats.Name("gcp-to-groups"))
	if err != nil {
		return fmt.Errorf("unable to connect to NATS server %v (%w)", n.URL, err)
	}

	defer nc.Close()

	if err := nc.Publish(n.Subject, payload); err != nil {
		return fmt.Errorf("error publishing run report to %v (%w)", n.Subject, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		return nc.FlushTimeout(time.Until(deadline))
	}

	return nc.Flush()
}

type SES struct {
	From   string
	To     []string
	Region string
}

func (s SES) Alert(ctx context.Context, run Run) error {
	opts := []func(*awsConfig.LoadOptions) error{}
	if s.Region != "" {
		opts = append(opts, awsConfig.WithRegion(s.Region))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("unable to load AWS configuration (%w)", err)
	}

	client := sesv2.NewFromConfig(cfg)
	rq := sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.From),
		Destination: &types.Destination{
			ToAddresses: s.To,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data: aws.String(fmt.Sprintf("gcp-to-groups: sync error(s) in run %v", run.ID)),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data: aws.String(run.Message()),
					},
				},
			},
		},
	}

	if _, err := client.SendEmail(ctx, &rq); err != nil {
		return fmt.Errorf("error sending alert email (%w)", err)
	}

	return nil
}
