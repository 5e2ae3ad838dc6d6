// Command slabctl is a thin HTTP client for the admin surface exposed by
// admin.Server: stats, reassign and limit-change, each a subcommand.
package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "slabctl"
	app.Usage = "inspect and control a running slabcache allocator"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "addr", Value: "http://127.0.0.1:8080", Usage: "admin server address"},
		cli.StringFlag{Name: "token", Usage: "bearer token for mutating commands"},
	}
	app.Commands = []cli.Command{
		{
			Name:  "stats",
			Usage: "print the allocator's JSON stats snapshot",
			Action: func(c *cli.Context) error {
				return get(c.GlobalString("addr")+"/stats", c.GlobalString("token"))
			},
		},
		{
			Name:      "reassign",
			Usage:     "reassign <src> <dst> <num_slabs>",
			ArgsUsage: "<src> <dst> <num_slabs>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 3 {
					return cli.NewExitError("reassign requires exactly 3 arguments", 1)
				}
				v := url.Values{}
				v.Set("src", c.Args().Get(0))
				v.Set("dst", c.Args().Get(1))
				v.Set("n", c.Args().Get(2))
				return post(c.GlobalString("addr")+"/reassign?"+v.Encode(), c.GlobalString("token"))
			},
		},
		{
			Name:      "limit",
			Usage:     "limit <bytes>",
			ArgsUsage: "<bytes>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.NewExitError("limit requires exactly 1 argument", 1)
				}
				v := url.Values{}
				v.Set("bytes", c.Args().Get(0))
				return post(c.GlobalString("addr")+"/limit?"+v.Encode(), c.GlobalString("token"))
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func get(addr, token string) error {
	req, err := http.NewRequest(http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	return do(req, token)
}

func post(addr, token string) error {
	req, err := http.NewRequest(http.MethodPost, addr, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	return do(req, token)
}

func do(req *http.Request, token string) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	if resp.StatusCode >= 400 {
		return cli.NewExitError(fmt.Sprintf("server returned %s", resp.Status), 1)
	}
	return nil
}
