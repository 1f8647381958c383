package main

import (
	"fmt"
	"strconv"

	"github.com/cuemby/raftkv/pkg/raftkvclient"
	"github.com/cuemby/raftkv/pkg/rpc"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get ADDRESS KEY",
	Short: "Read a key's value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := raftkvclient.New(args[0])
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		val, err := c.Get([]byte(args[1]))
		if err != nil {
			return err
		}
		fmt.Println(string(val))
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put ADDRESS KEY VALUE",
	Short: "Write a key's value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := raftkvclient.New(args[0])
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		if err := c.Put([]byte(args[1]), []byte(args[2])); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ADDRESS KEY",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := raftkvclient.New(args[0])
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		if err := c.Delete([]byte(args[1])); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status ADDRESS",
	Short: "Show the cluster's leader and membership as seen from ADDRESS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := raftkvclient.New(args[0])
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		leaderID, addrs, err := c.Status()
		if err != nil {
			return err
		}

		fmt.Printf("Leader: %d\n", leaderID)
		fmt.Println("Members:")
		for id, addr := range addrs {
			fmt.Printf("  %d  kv=%s  raft=%s\n", id, addr.KVAddress, addr.RaftAddress)
		}
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join ADDRESS NODE_ID KV_ADDR RAFT_ADDR",
	Short: "Add a node to the cluster",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := raftkvclient.New(args[0])
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		nodeID, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node id %q: %w", args[1], err)
		}

		if err := c.Join(nodeID, rpc.NodeAddressWire{KVAddress: args[2], RaftAddress: args[3]}); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil
	},
}

var leaveCmd = &cobra.Command{
	Use:   "leave ADDRESS NODE_ID",
	Short: "Remove a node from the cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := raftkvclient.New(args[0])
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		nodeID, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node id %q: %w", args[1], err)
		}

		if err := c.Leave(nodeID); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil
	},
}
