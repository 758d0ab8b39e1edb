package xref

import (
	"context"
	"errors"
	"io"

	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/scanner"
)

// repair scans the entire file to reconstruct the xref table.
// It looks for "<num> <gen> obj" patterns and "trailer" dictionaries; a later
// definition of the same object number wins, as in an incremental update.
func repair(ctx context.Context, data []byte) (Table, error) {
	s := scanner.New(data, scanner.Config{})
	entries := make(map[int]Entry)
	var lastTrailer *raw.DictObj

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// skip the offending byte and keep scanning
			if s.SeekTo(s.Position()+1) != nil {
				break
			}
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			tokGen, err := s.Next()
			if err != nil {
				continue
			}
			if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt {
				continue
			}
			tokObj, err := s.Next()
			if err != nil {
				continue
			}
			if tokObj.Type == scanner.TokenKeyword && tokObj.Str == "obj" {
				entries[int(tok.Int)] = Entry{Kind: EntryInUse, Offset: tok.Pos, Gen: int(tokGen.Int)}
				continue
			}
			// "1 2 0 obj": the generation token may start the real header
			if err := s.SeekTo(tokGen.Pos); err != nil {
				return nil, err
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			r := scanner.NewObjectReader(s, 0, nil)
			if obj, err := r.ReadValue(); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	if lastTrailer == nil {
		lastTrailer = raw.Dict()
	}
	lastTrailer.Delete("Prev")
	lastTrailer.Delete("XRefStm")
	return &table{entries: entries, trailer: lastTrailer, kind: "repair"}, nil
}
