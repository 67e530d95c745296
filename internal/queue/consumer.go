package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// DefaultLogPath is where admin notifications are appended.
var DefaultLogPath = filepath.Join("logs", "booking.log")

// Consumer drains booking.confirmed and appends one line per booking to a
// notification log the front desk tails.
type Consumer struct {
    URL     string
    LogPath string
    Log     logrus.FieldLogger
}

// Run connects, consumes and reconnects with backoff until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.WithError(err).WithField("retry_in", backoff.String()).Warn("booking-consumer: dial failed")
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.WithError(err).Warn("booking-consumer: consume loop ended, reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.WithError(err).Warn("booking-consumer: set QoS failed")
    }
    if _, err := ch.QueueDeclare(BookingConfirmedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(d.Body); err != nil {
                c.Log.WithError(err).WithField("message_id", d.MessageId).Error("booking-consumer: handle message failed")
                // Reject without requeue so a bad message cannot spin.
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one message and appends its notification line.
func (c *Consumer) Handle(body []byte) error {
    var ev BookingConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    path := c.LogPath
    if path == "" {
        path = DefaultLogPath
    }
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders the admin notification for one booking.
func FormatLine(ev BookingConfirmedEvent) string {
    devices := make([]string, 0, len(ev.Devices))
    for _, d := range ev.Devices {
        if d.DeviceType == "ps5" {
            devices = append(devices, fmt.Sprintf("PS5 Unit %d x%d", d.Unit, d.PlayerCount))
        } else {
            devices = append(devices, "Driving Simulator")
        }
    }
    member := ""
    if ev.MembershipApplied {
        member = " | membership=yes"
    }
    return fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | type=%s | customer=%q | phone=%s | date=%s | time=%s-%s | devices=[%s] | total=%s INR%s\n",
        ev.ConfirmedAt, ev.BookingID, ev.BookingType, ev.CustomerName, ev.CustomerPhone,
        ev.BookingDate, ev.StartTime, ev.EndTime, strings.Join(devices, ", "), ev.TotalPrice, member)
}
