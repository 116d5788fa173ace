// Command schedctl queries slots, books with deposits and converts times
// against a running clinicbook API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"clinicbook/internal/api"
	"clinicbook/internal/booking"
	"clinicbook/internal/client"
	"clinicbook/internal/model"
)

const usage = `usage: schedctl <command> [flags]

commands:
  slots    -doctor ID -date YYYY-MM-DD [-tz ZONE] [-lock true|false] [-lang CODE]
  book     -customer ID -doctor ID -date YYYY-MM-DD -time HH:MM -name NAME [-email E] [-phone P]
  convert  -date YYYY-MM-DD -time HH:MM -from ZONE -to ZONE
  deposit  -customer ID [-doctor ID -sessions N -ref PAYMENT_REF]
  cancel   -id APPOINTMENT_ID

environment: CLINICBOOK_URL, CLINICBOOK_API_KEY, CLINICBOOK_ADMIN_KEY
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	baseURL := os.Getenv("CLINICBOOK_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c := client.New(baseURL, os.Getenv("CLINICBOOK_API_KEY")).WithAdminKey(os.Getenv("CLINICBOOK_ADMIN_KEY"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, c, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Closure != nil {
			fmt.Fprintf(os.Stderr, "closed %s to %s: %s\n", apiErr.Closure.DateFrom, apiErr.Closure.DateTo, apiErr.Closure.Reason)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, command string, args []string, out io.Writer) error {
	switch command {
	case "slots":
		return runSlots(ctx, c, args, out)
	case "book":
		return runBook(ctx, c, args, out)
	case "convert":
		return runConvert(ctx, c, args, out)
	case "deposit":
		return runDeposit(ctx, c, args, out)
	case "cancel":
		return runCancel(ctx, c, args, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func runSlots(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("slots", flag.ContinueOnError)
	doctor := fs.Int64("doctor", 0, "doctor id")
	date := fs.String("date", "", "date YYYY-MM-DD")
	zone := fs.String("tz", "", "show times in this zone too")
	lockFlag := fs.String("lock", "", "preview under another lock policy (true|false, admin key)")
	lang := fs.String("lang", "", "closure reason language")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := client.SlotsQuery{DoctorID: *doctor, Date: *date, ClientTimezone: *zone, Lang: *lang}
	if *lockFlag != "" {
		v, err := strconv.ParseBool(*lockFlag)
		if err != nil {
			return fmt.Errorf("invalid -lock: %w", err)
		}
		q.Lock = &v
	}

	resp, err := c.Slots(ctx, q)
	if err != nil {
		return err
	}
	printSlots(out, resp)
	return nil
}

func printSlots(out io.Writer, resp *api.SlotsResponse) {
	if resp.Closure != nil {
		fmt.Fprintf(out, "closed %s to %s: %s\n", resp.Closure.DateFrom, resp.Closure.DateTo, resp.Closure.Reason)
		return
	}
	if len(resp.Slots) == 0 {
		fmt.Fprintln(out, "no slots")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := "TIME (" + resp.Timezone + ")\tSTATUS\tSTEP"
	if resp.ClientTimezone != "" {
		header += "\t" + resp.ClientTimezone
	}
	fmt.Fprintln(tw, header)
	for _, s := range resp.Slots {
		status := "available"
		if !s.Available {
			status = s.Reason
		}
		line := fmt.Sprintf("%s\t%s\t%dm", s.Time, status, s.Increment)
		if resp.ClientTimezone != "" {
			line += "\t" + s.ClientDate + " " + s.ClientTime
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
}

func runBook(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	var req booking.Request
	fs.StringVar(&req.CustomerID, "customer", "", "customer id")
	fs.Int64Var(&req.DoctorID, "doctor", 0, "doctor id")
	fs.StringVar(&req.Date, "date", "", "date YYYY-MM-DD")
	fs.StringVar(&req.Time, "time", "", "time HH:MM")
	fs.StringVar(&req.PatientName, "name", "", "patient name")
	fs.StringVar(&req.PatientEmail, "email", "", "patient email")
	fs.StringVar(&req.PatientPhone, "phone", "", "patient phone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	appt, err := c.BookWithDeposit(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(out, appt)
}

func runConvert(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	date := fs.String("date", "", "date YYYY-MM-DD")
	clock := fs.String("time", "", "time HH:MM")
	from := fs.String("from", "", "source zone")
	to := fs.String("to", "", "target zone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.Convert(ctx, *date, *clock, *from, *to)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s %s\n", resp.Date, resp.Time, resp.Timezone)
	return nil
}

func runDeposit(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("deposit", flag.ContinueOnError)
	customer := fs.String("customer", "", "customer id")
	doctor := fs.Int64("doctor", 0, "doctor id (credit only)")
	sessions := fs.Int("sessions", 0, "sessions to credit")
	ref := fs.String("ref", "", "payment reference")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *sessions > 0 {
		d, err := c.IncreaseDeposit(ctx, api.IncreaseDepositRequest{
			CustomerID: *customer, DoctorID: *doctor, Sessions: *sessions, PaymentRef: *ref,
		})
		if err != nil {
			return err
		}
		return printJSON(out, d)
	}

	deposits, err := c.Deposits(ctx, *customer)
	if err != nil {
		return err
	}
	printDeposits(out, deposits)
	return nil
}

func printDeposits(out io.Writer, deposits []model.SessionDeposit) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCTOR\tREMAINING\tPURCHASED")
	for _, d := range deposits {
		fmt.Fprintf(tw, "%d\t%d\t%d\n", d.DoctorID, d.RemainingSessions, d.TotalPurchased)
	}
	_ = tw.Flush()
}

func runCancel(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	id := fs.Int64("id", 0, "appointment id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.CancelAppointment(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(out, "appointment %d cancelled\n", *id)
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
