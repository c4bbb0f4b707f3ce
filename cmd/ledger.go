/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// ledgerCommands groups operator commands that inspect a single user's ledger.
func ledgerCommands(t *tallyInstance) *cobra.Command {
	var userID string

	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "inspect a user's ledger",
	}
	ledgerCmd.PersistentFlags().StringVar(&userID, "user", "", "user id of the ledger")

	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "print the ledger document",
		Run: func(cmd *cobra.Command, args []string) {
			ledger, err := t.tally.GetLedger(context.Background(), userID)
			if err != nil {
				log.Fatal(err)
			}
			data, err := json.MarshalIndent(ledger, "", "    ")
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(string(data))
		},
	})

	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "recompute the aggregates from history and compare them with the stored values",
		Run: func(cmd *cobra.Command, args []string) {
			ledger, err := t.tally.GetLedger(context.Background(), userID)
			if err != nil {
				log.Fatal(err)
			}
			if err := ledger.Verify(); err != nil {
				log.Fatalf("ledger %s is inconsistent: %v", userID, err)
			}
			fmt.Printf("ledger %s is consistent: balance %s, in %s, out %s, %d transactions\n",
				userID, ledger.Balance, ledger.InAmount, ledger.OutAmount, len(ledger.History))
		},
	})

	return ledgerCmd
}
