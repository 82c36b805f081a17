package main

import (
	"chat-hub/repositories"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

func main() {
	dbPath := pflag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := pflag.String("prefix", "msg:", "Prefix to scan (empty scans everything)")
	limit := pflag.Int("limit", 0, "Stop after this many rows (0 is unlimited)")
	pflag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			if *limit > 0 && rows >= *limit {
				break
			}
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				fmt.Printf("Error reading key %s: %v\n", string(item.Key()), err)
				continue
			}
			record := repositories.Describe(string(item.Key()), val)
			table.Append([]string{record.Key, record.Type, record.Detail})
			rows++
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("\n%d row(s) under prefix %q\n", rows, *prefix)
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR)
	return badger.Open(opts)
}
