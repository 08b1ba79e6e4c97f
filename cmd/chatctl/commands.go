package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/storechat/internal/chat"
	"github.com/spf13/cobra"
)

type identityView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type conversationView struct {
	Key             string `json:"key"`
	CounterpartID   string `json:"counterpart_id"`
	CounterpartName string `json:"counterpart_name"`
	LastMessage     string `json:"last_message,omitempty"`
	LastMessageAt   string `json:"last_message_at,omitempty"`
}

type messageView struct {
	ID         string `json:"id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at"`
	ReadAt     string `json:"read_at,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}

func toConversationView(c chat.Conversation) conversationView {
	return conversationView{
		Key:             c.Key,
		CounterpartID:   c.CounterpartID,
		CounterpartName: c.CounterpartName,
		LastMessage:     c.LastMessage.Body,
		LastMessageAt:   formatTime(c.LastMessage.Timestamp),
	}
}

func toMessageView(r chat.Record) messageView {
	return messageView{
		ID:         r.ID,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		Body:       r.Body,
		CreatedAt:  formatTime(r.CreatedAt),
		ReadAt:     formatTime(r.ReadAt),
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the resolved user id",
		Args:  cobra.NoArgs,
		RunE: withContext(func(c *cmdContext, _ []string) error {
			if c.jsonOut {
				return c.outputJSON(identityView{ID: c.self.ID, Name: c.self.Name})
			}
			_, err := fmt.Fprintf(c.out, "%s (%s)\n", c.self.Name, c.self.ID)
			return err
		}),
	}
}

func newConversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: withContext(func(c *cmdContext, _ []string) error {
			convs, err := c.client.ListConversations(c.ctx, c.self.ID)
			if err != nil {
				return err
			}
			views := make([]conversationView, 0, len(convs))
			for _, conv := range convs {
				views = append(views, toConversationView(conv))
			}
			if c.jsonOut {
				return c.outputJSON(views)
			}
			if len(views) == 0 {
				_, err := fmt.Fprintln(c.out, "No conversations.")
				return err
			}
			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tWITH\tLAST MESSAGE\tAT")
			for _, v := range views {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Key, v.CounterpartName, preview(v.LastMessage), v.LastMessageAt)
			}
			return w.Flush()
		}),
	}
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <name>",
		Short: "Create or look up the conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: withContext(func(c *cmdContext, args []string) error {
			other, err := c.client.ResolveIdentity(c.ctx, args[0])
			if err != nil {
				return err
			}
			if other.ID == c.self.ID {
				return fmt.Errorf("cannot open a conversation with yourself")
			}
			conv, err := c.client.EnsureConversation(c.ctx, chat.Key(c.self.ID, other.ID), c.self.ID, other.ID)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.outputJSON(toConversationView(conv))
			}
			_, err = fmt.Fprintln(c.out, conv.Key)
			return err
		}),
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <key>",
		Short: "Print the latest messages of a conversation",
		Args:  cobra.ExactArgs(1),
	}
	limit := cmd.Flags().IntP("limit", "n", 50, "number of messages")
	cmd.RunE = withContext(func(c *cmdContext, args []string) error {
		records, err := c.client.FetchHistory(c.ctx, args[0], *limit)
		if err != nil {
			return err
		}
		views := make([]messageView, 0, len(records))
		for _, r := range records {
			views = append(views, toMessageView(r))
		}
		if c.jsonOut {
			return c.outputJSON(views)
		}
		for _, r := range records {
			mark := ""
			if r.AuthorID == c.self.ID && !r.ReadAt.IsZero() {
				mark = " (read)"
			}
			fmt.Fprintf(c.out, "[%s] %s: %s%s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.AuthorName, r.Body, mark)
		}
		return nil
	})
	return cmd
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <key> <message...>",
		Short: "Store a message in a conversation",
		Long: "Store a message in a conversation. The message is persisted only;\n" +
			"clients pick it up on their next history load.",
		Args: cobra.MinimumNArgs(2),
		RunE: withContext(func(c *cmdContext, args []string) error {
			body := strings.TrimSpace(strings.Join(args[1:], " "))
			if body == "" {
				return fmt.Errorf("empty message")
			}
			rec, err := c.client.PersistMessage(c.ctx, args[0], c.self.ID, body)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.outputJSON(toMessageView(rec))
			}
			_, err = fmt.Fprintln(c.out, rec.ID)
			return err
		}),
	}
}

func newMarkReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-read <key>",
		Short: "Mark the counterpart's messages in a conversation as read",
		Args:  cobra.ExactArgs(1),
		RunE: withContext(func(c *cmdContext, args []string) error {
			n, err := c.client.MarkRead(c.ctx, args[0], c.self.ID)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.outputJSON(map[string]int{"read_count": n})
			}
			_, err = fmt.Fprintf(c.out, "%d marked read\n", n)
			return err
		}),
	}
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 40 {
		return string(r[:39]) + "…"
	}
	return s
}
