// bcsvheader prints the column table (index, name, type) of a binary
// row-store file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	bcsv "github.com/webertob/bcsv-go"
)

var verbose = flag.Bool("v", false, "also print row count, codec and seal state")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	r, err := bcsv.OpenReader(flag.Arg(0))
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer r.Close()

	if *verbose {
		fmt.Printf("file:      %s\n", r.FilePath())
		fmt.Printf("rows:      %d\n", r.RowCount())
		fmt.Printf("row codec: %s\n", r.RowCodec())
		fmt.Printf("sealed:    %t\n", r.Sealed())
		if !r.Sealed() {
			fmt.Printf("warning:   %s\n", r.ErrorMsg())
		}
		fmt.Println()
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "index\tname\ttype")
	layout := r.Layout()
	for i := 0; i < layout.ColumnCount(); i++ {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, layout.Name(i), layout.Type(i))
	}
	if err := tw.Flush(); err != nil {
		log.Fatal(err)
	}
}
