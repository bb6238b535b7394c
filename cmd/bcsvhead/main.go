// bcsvhead prints the first rows of a binary row-store file as delimited
// text, optionally filtered and projected through a sampler expression
// pair.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	bcsv "github.com/webertob/bcsv-go"
	"github.com/webertob/bcsv-go/sampler"
)

var (
	numRows    = flag.Int("n", 10, "number of rows to print")
	delim      = flag.String("d", ",", "field delimiter")
	quote      = flag.String("q", `"`, "quote character")
	quoteAll   = flag.Bool("quote-all", false, "quote every field")
	noHeader   = flag.Bool("no-header", false, "do not print the header row")
	precision  = flag.Int("p", -1, "floating point precision (-1 = shortest)")
	verbose    = flag.Bool("v", false, "print file details and, with -filter/-select, the compiled bytecode")
	filterExpr = flag.String("filter", "", "conditional expression; rows failing it are dropped")
	selectExpr = flag.String("select", "", "comma-separated selection expressions")
)

// rowSource is satisfied by both *bcsv.Reader and *sampler.Sampler.
type rowSource interface {
	Row() *bcsv.Row
}

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
	if !r.Sealed() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", r.ErrorMsg())
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "%s: %d rows, row codec %s, %d columns\n",
			r.FilePath(), r.RowCount(), r.RowCodec(), r.Layout().ColumnCount())
	}

	outLayout := r.Layout()
	var next func() bool
	var src rowSource = r

	if *filterExpr != "" || *selectExpr != "" {
		s := sampler.New(r)
		if *filterExpr != "" {
			if res := s.SetConditional(*filterExpr); !res.Success {
				log.Fatalf("filter: %s", res.ErrorMsg)
			}
		}
		if *selectExpr != "" {
			if res := s.SetSelection(*selectExpr); !res.Success {
				log.Fatalf("select: %s", res.ErrorMsg)
			}
			outLayout = s.OutputLayout()
		}
		if *verbose {
			fmt.Fprint(os.Stderr, s.Disassemble())
		}
		next = s.Next
		src = s
	} else {
		next = r.ReadNext
	}

	if !*noHeader {
		names := make([]string, outLayout.ColumnCount())
		for i := range names {
			names[i] = quoteField(outLayout.Name(i))
		}
		fmt.Println(strings.Join(names, *delim))
	}

	fields := make([]string, outLayout.ColumnCount())
	for printed := 0; printed < *numRows && next(); printed++ {
		src.Row().Visit(func(i int, v interface{}) {
			fields[i] = quoteField(formatCell(v))
		})
		fmt.Println(strings.Join(fields, *delim))
	}
	if msg := r.ErrorMsg(); msg != "" && r.Sealed() {
		log.Fatalf("read: %s", msg)
	}
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return formatFloat(float64(val), 32)
	case float64:
		return formatFloat(val, 64)
	case string:
		return val
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(v float64, bits int) string {
	if *precision >= 0 {
		return strconv.FormatFloat(v, 'f', *precision, bits)
	}
	return strconv.FormatFloat(v, 'g', -1, bits)
}

func quoteField(s string) string {
	if !*quoteAll && !strings.ContainsAny(s, *delim+*quote+"\n") {
		return s
	}
	return *quote + strings.ReplaceAll(s, *quote, *quote+*quote) + *quote
}
