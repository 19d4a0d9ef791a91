package convert

import (
	"fmt"
	"strings"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/record"
)

// passthrough stores every unconsumed key as a run extension.
//
// Keys under record.MetaPrefix are gathered into a single object stored
// under Options.MetaAttribute, keyed by the name without the prefix. Other
// keys are sanitized and prefixed with Options.ExtensionPrefix. A value the
// run rejects, or a key whose name is already taken, is dropped with an
// attribute diagnostic. Keys are visited in sorted order, so the first key
// to claim a name keeps it.
func (c *Converter) passthrough(res *runResult, v *record.View) {
	rec := v.Record()
	meta := make(map[string]any)

	for _, key := range v.Remaining() {
		val := rec[key]
		if strings.HasPrefix(key, record.MetaPrefix) {
			if err := archive.CheckValue(val); err != nil {
				res.fail(KindAttribute, key, -1, err)
				continue
			}
			meta[strings.TrimPrefix(key, record.MetaPrefix)] = val
			continue
		}
		name := c.opts.ExtensionPrefix + record.SanitizeKey(key)
		if _, taken := res.run.Extensions[name]; taken {
			res.fail(KindAttribute, key, -1, fmt.Errorf("extension %s is already set", name))
			continue
		}
		if err := res.run.SetExtension(name, val); err != nil {
			res.fail(KindAttribute, key, -1, err)
			continue
		}
		v.Consume(key)
	}

	if len(meta) == 0 {
		return
	}
	if _, taken := res.run.Extensions[c.opts.MetaAttribute]; taken {
		res.fail(KindAttribute, record.MetaPrefix+"*", -1, fmt.Errorf("extension %s is already set", c.opts.MetaAttribute))
		return
	}
	if err := res.run.SetExtension(c.opts.MetaAttribute, meta); err != nil {
		res.fail(KindAttribute, record.MetaPrefix+"*", -1, err)
		return
	}
	for key := range meta {
		v.Consume(record.MetaPrefix + key)
	}
}
