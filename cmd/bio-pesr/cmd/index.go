package cmd

import (
	"bufio"
	"context"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/pesr/encoding/counts"
)

// index copies a sorted split-count or discordant-pair text file to a
// bgzipped, tabix-indexed one.  Every line is parsed before it is written.
// On error, nothing is left at destPath or its index path.
func index(ctx context.Context, format, srcPath, destPath string) (err error) {
	var parse func([]byte) error
	switch format {
	case "split":
		parse = func(line []byte) error {
			_, err := counts.ParseRecord(line)
			return err
		}
	case "disc":
		parse = func(line []byte) error {
			_, err := counts.ParsePair(line)
			return err
		}
	default:
		return errors.E(errors.Invalid, "unknown format", strconv.Quote(format))
	}
	r, closeText, err := openText(ctx, srcPath)
	if err != nil {
		return err
	}
	defer func() {
		if e := closeText(); e != nil && err == nil {
			err = e
		}
	}()
	w, err := counts.NewWriter(ctx, destPath)
	if err != nil {
		return err
	}
	defer func() {
		if e := w.Close(); e != nil && err == nil {
			err = e
		}
		if err == nil {
			return
		}
		// Leave no partial output behind.
		for _, path := range []string{destPath, counts.IndexPath(destPath)} {
			if e := file.Remove(ctx, path); e != nil && !errors.Is(errors.NotExist, e) {
				log.Error.Printf("%s: %v", path, e)
			}
		}
	}()
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if err := parse(line); err != nil {
			return errors.E(err, srcPath+":"+strconv.Itoa(n))
		}
		if err := w.WriteLine(line); err != nil {
			return errors.E(err, srcPath+":"+strconv.Itoa(n))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.E(errors.Unavailable, srcPath, err)
	}
	log.Printf("%s: indexed %d lines", destPath, n)
	return nil
}
