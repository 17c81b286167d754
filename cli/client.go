package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/websocket"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print everything published on a served backplane",
	RunE:  runTail,
}

var publishCmd = &cobra.Command{
	Use:   "publish [message...]",
	Short: "Publish messages on a served backplane",
	Long: `Publish each argument as one message. Without arguments, every line of
standard input is published.`,
	RunE: runPublish,
}

var (
	clientURL  string
	tailCount  int
	tailWait   time.Duration
	publishGap time.Duration
)

func init() {
	for _, c := range []*cobra.Command{tailCmd, publishCmd} {
		c.Flags().StringVar(&clientURL, "url", "ws://localhost:3001/subscribe", "backplane websocket URL")
	}
	tailCmd.Flags().IntVarP(&tailCount, "count", "n", 0, "exit after this many messages (0 means never)")
	tailCmd.Flags().DurationVar(&tailWait, "wait", 0, "exit if nothing arrives for this long (0 means never)")
	publishCmd.Flags().DurationVar(&publishGap, "gap", 0, "pause between messages")
	rootCmd.AddCommand(tailCmd, publishCmd)
}

func dial(url string) (*websocket.Conn, error) {
	origin := "http://localhost/"
	if i := strings.Index(url, "://"); i >= 0 {
		origin = "http" + strings.TrimPrefix(url[:i], "ws") + url[i:]
	}
	ws, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	return ws, nil
}

func runTail(cmd *cobra.Command, args []string) error {
	return tail(cmd.OutOrStdout(), clientURL, tailCount, tailWait)
}

// tail prints up to count frames (all when count is 0), giving up after
// wait without a frame when wait is set.
func tail(out io.Writer, url string, count int, wait time.Duration) error {
	ws, err := dial(url)
	if err != nil {
		return err
	}
	defer ws.Close()
	for received := 0; count == 0 || received < count; received++ {
		if wait > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(wait))
		}
		var text string
		if err := websocket.Message.Receive(ws, &text); err != nil {
			var netErr net.Error
			if errors.Is(err, io.EOF) || (errors.As(err, &netErr) && netErr.Timeout()) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		fmt.Fprintln(out, text)
	}
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	ws, err := dial(clientURL)
	if err != nil {
		return err
	}
	defer ws.Close()

	send := func(text string) error {
		if err := websocket.Message.Send(ws, text); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		logger.Debug().Str("message", text).Msg("published")
		if publishGap > 0 {
			time.Sleep(publishGap)
		}
		return nil
	}
	if len(args) > 0 {
		for _, a := range args {
			if err := send(a); err != nil {
				return err
			}
		}
		return nil
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if err := send(scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}
