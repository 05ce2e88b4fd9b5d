// Package cultura maps free-text employee survey subthemes onto a fixed
// taxonomy of culture dimensions and clusters the subthemes of each
// dimension under representative names.
//
// Quick start:
//
//	c, err := cultura.New(cultura.WithModelDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	m, _ := c.Map(ctx, "Managers rarely say thank you")
//	fmt.Println(m.Dimensions) // [Recognition]
//
// A Cultura instance is safe for concurrent use. Loading it embeds every
// dimension with both bi-encoders, so create it once and reuse it.
package cultura
