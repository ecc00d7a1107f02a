// Copyright 2024 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workingset

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NodeID identifies a NUMA node.
type NodeID int

// Bucket is a single age bin of a node's working set report.
type Bucket struct {
	// AgeMs is the bin's page age in milliseconds.
	AgeMs uint64
	// Anon is the amount of anonymous memory in the bin.
	Anon uint64
	// File is the amount of file-backed memory in the bin.
	File uint64
}

// Size returns the total amount of memory in the bin.
func (b Bucket) Size() uint64 {
	return b.Anon + b.File
}

// Snapshot is the per-node working set page age histogram of a group,
// taken at a single instant. Buckets are kept in the order they were
// reported. An empty snapshot means no data is available.
type Snapshot map[NodeID][]Bucket

// Nodes returns the ids of the nodes present in the snapshot in ascending order.
func (s Snapshot) Nodes() []NodeID {
	nodes := make([]NodeID, 0, len(s))
	for id := range s {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// ParseError is returned for input not matching the page age report grammar.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return "workingset: line " + strconv.Itoa(e.Line) + ": " + e.Reason + ": " + strconv.Quote(e.Text)
}

// Parse parses a page age report, as found in memory.workingset.page_age:
//
//	N0
//	1000 anon=10 file=20
//	2000 anon=5 file=0
//	N1
//	1000 anon=1 file=1
//
// Empty input yields an empty snapshot. Any line not matching the grammar
// fails the whole parse with a *ParseError.
func Parse(data string) (Snapshot, error) {
	return ParseReader(strings.NewReader(data))
}

// ParseReader parses a page age report from r.
func ParseReader(r io.Reader) (Snapshot, error) {
	p := &parser{snap: Snapshot{}}
	s := bufio.NewScanner(r)
	for s.Scan() {
		p.line++
		if err := p.parseLine(strings.TrimSpace(s.Text())); err != nil {
			return nil, err
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "workingset: failed to read page age report")
	}
	return p.snap, nil
}

// parser is a line tokenizer for page age reports. It is either waiting for
// the first node header or collecting the buckets of the current node.
type parser struct {
	snap   Snapshot
	line   int
	inNode bool
	node   NodeID
	ages   map[uint64]struct{}
}

func (p *parser) parseLine(line string) error {
	switch {
	case line == "":
		return nil
	case line[0] == 'N':
		return p.parseHeader(line)
	case !p.inNode:
		return p.fail(line, "data before node header")
	default:
		return p.parseBucket(line)
	}
}

func (p *parser) parseHeader(line string) error {
	id, err := strconv.ParseUint(line[1:], 10, 31)
	if err != nil {
		return p.fail(line, "invalid node header")
	}
	node := NodeID(id)
	if _, ok := p.snap[node]; ok {
		return p.fail(line, "duplicate node header")
	}
	p.snap[node] = []Bucket{}
	p.node = node
	p.inNode = true
	p.ages = map[uint64]struct{}{}
	return nil
}

func (p *parser) parseBucket(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return p.fail(line, "expected 3 fields")
	}

	age, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return p.fail(line, "invalid age")
	}
	if _, ok := p.ages[age]; ok {
		return p.fail(line, "duplicate age")
	}
	anon, ok := parseKeyValue(fields[1], "anon")
	if !ok {
		return p.fail(line, "invalid anon field")
	}
	file, ok := parseKeyValue(fields[2], "file")
	if !ok {
		return p.fail(line, "invalid file field")
	}

	p.ages[age] = struct{}{}
	p.snap[p.node] = append(p.snap[p.node], Bucket{AgeMs: age, Anon: anon, File: file})
	return nil
}

func (p *parser) fail(text, reason string) error {
	return &ParseError{Line: p.line, Text: text, Reason: reason}
}

func parseKeyValue(field, key string) (uint64, bool) {
	value, ok := strings.CutPrefix(field, key+"=")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
