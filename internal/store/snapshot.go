package store

import (
	"time"

	mnemoerrors "mnemo/internal/errors"
	"mnemo/internal/graph"
)

// snapshotHistoryCap bounds how many of the most recent history entries
// the canonical snapshot carries; the in-memory State keeps up to
// graph.HistoryCap but the on-disk form only ever needs the tail.
const snapshotHistoryCap = 50

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokKind) (token, error) {
	t := p.peek()
	if t.kind != k {
		return token{}, mnemoerrors.Serialization("unexpected token at position %d", p.pos)
	}
	return p.advance(), nil
}

func (p *parser) expectSymbol(name string) error {
	t, err := p.expect(tokSymbol)
	if err != nil {
		return err
	}
	if t.text != name {
		return mnemoerrors.Serialization("expected symbol %q, got %q", name, t.text)
	}
	return nil
}

func (p *parser) expectString() (string, error) {
	t, err := p.expect(tokString)
	if err != nil {
		return "", err
	}
	return t.text, nil
}

func (p *parser) expectNumber() (float64, error) {
	t, err := p.expect(tokNumber)
	if err != nil {
		return 0, err
	}
	return t.num, nil
}

func (p *parser) expectKeyword() (string, error) {
	t, err := p.expect(tokKeyword)
	if err != nil {
		return "", err
	}
	return t.text, nil
}

// Unmarshal parses the canonical snapshot grammar of §6 into a fresh
// State. An empty input is not valid; callers wanting "no snapshot yet"
// semantics should not call Unmarshal at all.
func Unmarshal(text string) (*graph.State, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("memory"); err != nil {
		return nil, err
	}

	state := graph.New("", time.Time{})
	state.Items = make(map[string]*graph.Item)

	for p.peek().kind != tokRParen {
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		tagTok, err := p.expect(tokSymbol)
		if err != nil {
			return nil, err
		}
		switch tagTok.text {
		case "id":
			s, err := p.expectString()
			if err != nil {
				return nil, err
			}
			state.WorkspaceID = s
		case "born":
			n, err := p.expectNumber()
			if err != nil {
				return nil, err
			}
			state.BornAt = msToTime(n)
		case "energy":
			n, err := p.expectNumber()
			if err != nil {
				return nil, err
			}
			state.Energy = n
		case "threshold":
			n, err := p.expectNumber()
			if err != nil {
				return nil, err
			}
			state.Threshold = n
		case "policy":
			if err := parsePolicy(p, state); err != nil {
				return nil, err
			}
		case "items":
			if err := parseItems(p, state); err != nil {
				return nil, err
			}
		case "edges":
			if err := parseEdges(p, state); err != nil {
				return nil, err
			}
		case "history":
			if err := parseHistory(p, state); err != nil {
				return nil, err
			}
		default:
			return nil, mnemoerrors.Serialization("unknown memory section %q", tagTok.text)
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return state, nil
}

func parsePolicy(p *parser, state *graph.State) error {
	for p.peek().kind != tokRParen {
		if _, err := p.expect(tokLParen); err != nil {
			return err
		}
		nameTok, err := p.expect(tokSymbol)
		if err != nil {
			return err
		}
		switch nameTok.text {
		case "decayFn":
			v, err := p.expectString()
			if err != nil {
				return err
			}
			state.Policy.DecayFn = v
		case "recallScoreFn":
			v, err := p.expectString()
			if err != nil {
				return err
			}
			state.Policy.RecallScoreFn = v
		case "recallScoreFns":
			list, err := parseStringList(p)
			if err != nil {
				return err
			}
			state.Policy.RecallScoreFns = list
		case "recallCombinerFn":
			v, err := p.expectString()
			if err != nil {
				return err
			}
			state.Policy.RecallCombinerFn = v
		case "explorationFn":
			v, err := p.expectString()
			if err != nil {
				return err
			}
			state.Policy.ExplorationFn = v
		case "policyGeneratorFn":
			v, err := p.expectString()
			if err != nil {
				return err
			}
			state.Policy.PolicyGeneratorFn = v
		default:
			return mnemoerrors.Serialization("unknown policy field %q", nameTok.text)
		}
		if _, err := p.expect(tokRParen); err != nil {
			return err
		}
	}
	return nil
}

func parseStringList(p *parser) ([]string, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("list"); err != nil {
		return nil, err
	}
	var out []string
	for p.peek().kind != tokRParen {
		s, err := p.expectString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return out, nil
}

func parseItems(p *parser, state *graph.State) error {
	if _, err := p.expect(tokLParen); err != nil {
		return err
	}
	if err := p.expectSymbol("list"); err != nil {
		return err
	}
	for p.peek().kind != tokRParen {
		item, err := parseItemRecord(p)
		if err != nil {
			return err
		}
		state.Items[item.ID] = item
	}
	_, err := p.expect(tokRParen)
	return err
}

func parseItemRecord(p *parser) (*graph.Item, error) {
	if _, err := p.expect(tokAmp); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	item := &graph.Item{}
	for p.peek().kind != tokRParen {
		kw, err := p.expectKeyword()
		if err != nil {
			return nil, err
		}
		switch kw {
		case "id":
			item.ID, err = p.expectString()
		case "type":
			var s string
			s, err = p.expectString()
			item.Kind = graph.Kind(s)
		case "text":
			item.Text, err = p.expectString()
		case "tags":
			item.Tags, err = parseStringList(p)
		case "importance":
			item.Importance, err = p.expectNumber()
		case "energy":
			item.Energy, err = p.expectNumber()
		case "ttl":
			item.TTL, err = p.expectString()
		case "scope":
			item.Scope, err = p.expectString()
		case "createdAt":
			var n float64
			n, err = p.expectNumber()
			item.CreatedAt = msToTime(n)
		case "updatedAt":
			var n float64
			n, err = p.expectNumber()
			item.UpdatedAt = msToTime(n)
		case "lastAccessedAt":
			var n float64
			n, err = p.expectNumber()
			item.LastAccessedAt = msToTime(n)
		case "decayedAt":
			var n float64
			n, err = p.expectNumber()
			item.DecayedAt = msToTime(n)
		case "accessCount":
			var n float64
			n, err = p.expectNumber()
			item.AccessCount = int(n)
		case "success":
			var n float64
			n, err = p.expectNumber()
			item.Success = int(n)
		case "fail":
			var n float64
			n, err = p.expectNumber()
			item.Fail = int(n)
		default:
			return nil, mnemoerrors.Serialization("unknown item field %q", kw)
		}
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return item, nil
}

func parseEdges(p *parser, state *graph.State) error {
	if _, err := p.expect(tokLParen); err != nil {
		return err
	}
	if err := p.expectSymbol("list"); err != nil {
		return err
	}
	for p.peek().kind != tokRParen {
		e, err := parseEdgeRecord(p)
		if err != nil {
			return err
		}
		state.Edges = append(state.Edges, e)
	}
	_, err := p.expect(tokRParen)
	return err
}

func parseEdgeRecord(p *parser) (*graph.Edge, error) {
	if _, err := p.expect(tokAmp); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	e := &graph.Edge{}
	for p.peek().kind != tokRParen {
		kw, err := p.expectKeyword()
		if err != nil {
			return nil, err
		}
		switch kw {
		case "from":
			e.From, err = p.expectString()
		case "to":
			e.To, err = p.expectString()
		case "relation":
			e.Relation, err = p.expectString()
		case "weight":
			e.Weight, err = p.expectNumber()
		case "lastReinforcedAt":
			var n float64
			n, err = p.expectNumber()
			e.LastReinforcedAt = msToTime(n)
		default:
			return nil, mnemoerrors.Serialization("unknown edge field %q", kw)
		}
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return e, nil
}

func parseHistory(p *parser, state *graph.State) error {
	if _, err := p.expect(tokLParen); err != nil {
		return err
	}
	if err := p.expectSymbol("list"); err != nil {
		return err
	}
	for p.peek().kind != tokRParen {
		if _, err := p.expect(tokAmp); err != nil {
			return err
		}
		if _, err := p.expect(tokLParen); err != nil {
			return err
		}
		var entry graph.HistoryEntry
		for p.peek().kind != tokRParen {
			kw, err := p.expectKeyword()
			if err != nil {
				return err
			}
			switch kw {
			case "t":
				n, err := p.expectNumber()
				if err != nil {
					return err
				}
				entry.T = msToTime(n)
			case "op":
				s, err := p.expectString()
				if err != nil {
					return err
				}
				entry.Op = s
			default:
				return mnemoerrors.Serialization("unknown history field %q", kw)
			}
		}
		if _, err := p.expect(tokRParen); err != nil {
			return err
		}
		state.History = append(state.History, entry)
	}
	_, err := p.expect(tokRParen)
	return err
}

func msToTime(ms float64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}

func timeToMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
