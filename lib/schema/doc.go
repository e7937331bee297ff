// Package schema maps a list of named fields onto one store and hands out
// typed collection handles for them. It takes the role of a code generator
// for a struct declaration: every field gets a prefix (by sorted name),
// counters are recovered from the store once on Open, and each accessor call
// returns a fresh handle sharing those counters.
//
//	s, err := schema.Open(oak.NewOakDB(nil), []schema.Field{
//		schema.ListField("primes"),
//		schema.DefaultField("the_field"),
//		schema.DefaultExprField("limit", "2 * 21"),
//		schema.MapField("scores"),
//	})
//	primes, err := schema.List[uint32](s, "primes")
//	err = primes.Push(2)
//
// At most keys.MaxFields fields fit into one store. Renaming, adding or
// removing fields can change the prefixes of existing data.
package schema
