package test

import (
	"context"
	"database/sql"
	"fmt"
	_ "github.com/go-sql-driver/mysql"
	"github.com/parbatch/parbatch"
	"github.com/parbatch/parbatch/validate"
	"strings"
)

//score a chunk of words, metadata carries the chunk total
func score(items []interface{}, params map[string]interface{}) ([]interface{}, interface{}, error) {
	factor, _ := params["factor"].(int)
	if factor == 0 {
		factor = 1
	}
	out := make([]interface{}, 0, len(items))
	total := 0
	for _, item := range items {
		word := item.(string)
		n := len(word) * factor
		total += n
		out = append(out, fmt.Sprintf("%s=%d", word, n))
	}
	return out, map[string]interface{}{"chunkTotal": total}, nil
}

func main() {
	//set db for parbatch to record run&chunk history, optional
	var db *sql.DB
	var err error
	db, err = sql.Open("mysql", "root:root123@tcp(127.0.0.1:3306)/parbatch?charset=utf8&parseTime=true")
	if err != nil {
		panic(err)
	}
	parbatch.SetDB(db)

	//build runner
	runner := parbatch.NewRunner("score", score).
		Validate(validate.Arg("factor").OfKind(validate.Int)).
		Build()

	//run
	words := strings.Fields("the quick brown fox jumps over the lazy dog")
	result, err := runner.Invoke(context.Background(), words, map[string]interface{}{
		"factor":         3,
		"chunkSize":      2,
		"poolSize":       4,
		"checkpointPath": "/tmp/parbatch/{name}-{date}.ckpt",
		"showProgress":   true,
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("scored: %v\n", result.Items)
	fmt.Printf("metadata: %v\n", result.Metadata)
}
