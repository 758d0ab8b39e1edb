// Command pdfinspect prints the structure stapler sees in a PDF: version,
// page order and outline, or the raw token stream with -tokens.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/outline"
	"github.com/tekikaito/stapler/parser"
	"github.com/tekikaito/stapler/scanner"
)

func main() {
	tokens := flag.Bool("tokens", false, "Dump the token stream instead of the document structure")
	limit := flag.Int("limit", 200000, "Maximum tokens printed with -tokens")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfinspect [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfinspect: %v\n", err)
		os.Exit(1)
	}
	if *tokens {
		err = dumpTokens(os.Stdout, data, *limit)
	} else {
		err = describe(context.Background(), os.Stdout, data)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfinspect: %v\n", err)
		os.Exit(1)
	}
}

func dumpTokens(w io.Writer, data []byte, limit int) error {
	s := scanner.New(data, scanner.Config{})
	for i := 0; i < limit; i++ {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d@%d %s\n", tok.Type, tok.Pos, tokenText(tok))
	}
	return nil
}

func tokenText(tok scanner.Token) string {
	switch tok.Type {
	case scanner.TokenName:
		return "/" + tok.Str
	case scanner.TokenString:
		return fmt.Sprintf("%q", tok.Bytes)
	case scanner.TokenStream:
		return fmt.Sprintf("stream(%d bytes)", len(tok.Bytes))
	case scanner.TokenNumber:
		if tok.IsInt {
			return fmt.Sprint(tok.Int)
		}
		return fmt.Sprint(tok.Float)
	case scanner.TokenBoolean:
		return fmt.Sprint(tok.Bool)
	case scanner.TokenRef:
		return fmt.Sprintf("%d %d R", tok.Int, tok.Gen)
	case scanner.TokenNull:
		return "null"
	default:
		return tok.Str
	}
}

func describe(ctx context.Context, w io.Writer, data []byte) error {
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return err
	}
	root, _ := doc.Root()
	fmt.Fprintf(w, "version %s, %d objects, root %s\n", doc.Version, len(doc.Objects), root)

	kinds := map[raw.Kind]int{}
	for _, obj := range doc.Objects {
		kinds[raw.KindOf(obj)]++
	}
	names := make([]string, 0, len(kinds))
	counts := map[string]int{}
	for k, n := range kinds {
		names = append(names, k.String())
		counts[k.String()] = n
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %d\n", name, counts[name])
	}

	pages := doc.Pages()
	index := make(map[raw.ObjectRef]int, len(pages))
	fmt.Fprintf(w, "pages: %d\n", len(pages))
	for i, p := range pages {
		index[p] = i + 1
		fmt.Fprintf(w, "  %3d  %s\n", i+1, p)
	}

	items := outline.Read(doc)
	fmt.Fprintf(w, "outline: %d\n", len(items))
	for _, it := range items {
		target := "-"
		if n, ok := index[it.Page]; ok {
			target = fmt.Sprintf("page %d", n)
		}
		fmt.Fprintf(w, "  %*s%s -> %s\n", it.Depth*2, "", it.Title, target)
	}
	return nil
}
