// Command dnswall-ctl is a thin HTTP client for dnswall-daemon's admin
// API, completing the stub left by the original Python client
// (ls/rm/add subcommands, each taking its own -H admin API address).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/dnswall-io/dnswall/internal/registry"
)

const defaultAdminAddr = "http://127.0.0.1:9090"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: dnswall-ctl <ls|add|rm> [-H admin-addr] ...")
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "ls":
		return runLs(defaultAdminAddr, rest)
	case "rm":
		return runRm(defaultAdminAddr, rest)
	case "add":
		return runAdd(defaultAdminAddr, rest)
	default:
		return fmt.Errorf("unknown command %q: expected ls, add, or rm", cmd)
	}
}

func runLs(defaultHost string, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	host := fs.String("H", defaultHost, "dnswall-daemon admin API address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := url.Values{}
	if fs.NArg() > 0 {
		query.Set("name", fs.Arg(0))
	}

	u := *host + "/names"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("contacting admin api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("admin api returned %s: %s", resp.Status, body)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func runRm(defaultHost string, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	host := fs.String("H", defaultHost, "dnswall-daemon admin API address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dnswall-ctl rm <name>")
	}

	req, err := http.NewRequest(http.MethodDelete, *host+"/names?"+url.Values{"name": {fs.Arg(0)}}.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contacting admin api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("admin api returned %s: %s", resp.Status, body)
	}
	return nil
}

func runAdd(defaultHost string, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	host := fs.String("H", defaultHost, "dnswall-daemon admin API address")
	uuid := fs.String("uuid", "", "container/owner UUID for this record")
	ipv4 := fs.String("ipv4", "", "IPv4 address")
	ipv6 := fs.String("ipv6", "", "IPv6 address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dnswall-ctl add [-uuid id] [-ipv4 addr] [-ipv6 addr] <name>")
	}

	item, err := registry.NewDomainItem(*uuid, *ipv4, *ipv6)
	if err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	body, err := json.Marshal([]registry.DomainItem{item})
	if err != nil {
		return err
	}

	u := *host + "/names?" + url.Values{"name": {fs.Arg(0)}}.Encode()
	resp, err := http.Post(u, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("contacting admin api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("admin api returned %s: %s", resp.Status, respBody)
	}
	return nil
}
