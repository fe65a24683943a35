// Command stpctl is a thin HTTP+JSON client for pkg/mgmtapi: it never
// touches pkg/stpengine directly, only the management API a running
// stpd exposes.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	server := flag.NewFlagSet("stpctl", flag.ExitOnError)
	addr := server.String("addr", "http://127.0.0.1:8080", "mgmtapi base URL")
	token := server.String("token", os.Getenv("STPCTL_TOKEN"), "bearer token for admin operations")

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "version", "--version", "-v":
		fmt.Printf("stpctl v%s\n", version)
		return
	case "help", "--help", "-h":
		printHelp()
		return
	case "login":
		server.Parse(args)
		runLogin(*addr, server.Args())
	case "role":
		server.Parse(args)
		runGet(*addr, portTreePath(server.Args(), "role"))
	case "state":
		server.Parse(args)
		runGet(*addr, portTreePath(server.Args(), "state"))
	case "vector":
		server.Parse(args)
		runGet(*addr, portTreePath(server.Args(), "vector"))
	case "root":
		server.Parse(args)
		runGet(*addr, treePath(server.Args(), "root"))
	case "set-priority":
		server.Parse(args)
		runSetBridgePriority(*addr, *token, server.Args())
	case "events":
		server.Parse(args)
		runEvents(*addr)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("stpctl - client for the spantree management API")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  stpctl login <user> <password>           obtain a bearer token")
	fmt.Println("  stpctl role <port> <tree>                print a port's role")
	fmt.Println("  stpctl state <port> <tree>                print a port's forwarding state")
	fmt.Println("  stpctl vector <port> <tree>                print a port's priority vector")
	fmt.Println("  stpctl root <tree>                         print a tree's root vector")
	fmt.Println("  stpctl set-priority <tree> <priority>      set the bridge priority for a tree")
	fmt.Println("  stpctl events                               print where to stream live role/topology events")
	fmt.Println()
	fmt.Println("Flags: -addr (default http://127.0.0.1:8080), -token (or STPCTL_TOKEN)")
}

func portTreePath(args []string, resource string) string {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "expected <port> <tree>")
		os.Exit(1)
	}
	return fmt.Sprintf("/api/v1/ports/%s/trees/%s/%s", args[0], args[1], resource)
}

func treePath(args []string, resource string) string {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "expected <tree>")
		os.Exit(1)
	}
	return fmt.Sprintf("/api/v1/trees/%s/%s", args[0], resource)
}

func runGet(addr, path string) {
	resp, err := http.Get(addr + path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func runLogin(addr string, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "expected <username> <password>")
		os.Exit(1)
	}
	body, _ := json.Marshal(map[string]string{"username": args[0], "password": args[1]})
	resp, err := http.Post(addr+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func runSetBridgePriority(addr, token string, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "expected <tree> <priority>")
		os.Exit(1)
	}
	var tree, prio int
	fmt.Sscanf(args[0], "%d", &tree)
	fmt.Sscanf(args[1], "%d", &prio)

	body, _ := json.Marshal(map[string]int{"tree": tree, "priority": prio})
	req, _ := http.NewRequest(http.MethodPost, addr+"/api/v1/bridge/priority", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func runEvents(addr string) {
	fmt.Fprintln(os.Stderr, "stpctl events requires a websocket client; connect to", addr, "/api/v1/events with any websocket tool")
}

func printResponse(resp *http.Response) {
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "error: %s\n", data)
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}
}
