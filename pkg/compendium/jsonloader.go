package compendium

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// LoadJSON reads and indexes a JSON compendium dump.
func LoadJSON(path string) (*Compendium, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compendium: read %q: %w", path, err)
	}
	c, err := ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("compendium: load %q: %w", path, err)
	}
	return c, nil
}

// ParseJSON indexes a JSON compendium dump. The dump keys creatures and
// skills by name; object order is kept as declaration order:
//
//	{
//	  "game": "p5",
//	  "inheritance": {"fire": ["fire", "phys"]},
//	  "demons": {"Arsene": {"race": "Fool", "lvl": 1, "inherits": "fire", "skills": {"Eiha": 0}}},
//	  "skills": {"Eiha": {"element": "curse", "level": 1, "unique": ""}},
//	  "recipes": [{"sources": ["Arsene", "Pixie"], "result": "Jack Frost", "cost": 1200}]
//	}
//
// Unknown fields are ignored.
func ParseJSON(raw []byte) (*Compendium, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("compendium: parse json: malformed document")
	}
	doc := gjson.ParseBytes(raw)

	d := Data{
		Game:        doc.Get("game").String(),
		Inheritance: make(map[string][]string),
	}

	doc.Get("inheritance").ForEach(func(k, v gjson.Result) bool {
		var elements []string
		v.ForEach(func(_, e gjson.Result) bool {
			elements = append(elements, e.String())
			return true
		})
		d.Inheritance[k.String()] = elements
		return true
	})

	doc.Get("demons").ForEach(func(k, v gjson.Result) bool {
		cr := Creature{
			Name:        k.String(),
			Race:        v.Get("race").String(),
			Level:       int(v.Get("lvl").Int()),
			Inherits:    v.Get("inherits").String(),
			SpecialOnly: v.Get("special").Bool(),
			NonFusible:  v.Get("treasure").Bool(),
			Skills:      make(map[string]int),
		}
		v.Get("skills").ForEach(func(sk, lvl gjson.Result) bool {
			cr.Skills[sk.String()] = int(lvl.Int())
			return true
		})
		d.Creatures = append(d.Creatures, cr)
		return true
	})

	doc.Get("skills").ForEach(func(k, v gjson.Result) bool {
		d.Skills = append(d.Skills, Skill{
			Name:        k.String(),
			Element:     v.Get("element").String(),
			Level:       int(v.Get("level").Int()),
			Unique:      v.Get("unique").String(),
			Description: v.Get("effect").String(),
		})
		return true
	})

	doc.Get("recipes").ForEach(func(_, v gjson.Result) bool {
		r := Recipe{
			Result: v.Get("result").String(),
			Cost:   int(v.Get("cost").Int()),
		}
		v.Get("sources").ForEach(func(_, s gjson.Result) bool {
			r.Sources = append(r.Sources, s.String())
			return true
		})
		d.Recipes = append(d.Recipes, r)
		return true
	})

	return New(d)
}
