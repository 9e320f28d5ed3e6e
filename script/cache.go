package script

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cadence-media/cadence/key"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const cacheSize = 64

// compiled holds function prototypes keyed by path and content hash, so edited scripts compile again.
var compiled = lo.Must(lru.New[string, *lua.FunctionProto](cacheSize))

func compile(path string, contents []byte) (*lua.FunctionProto, error) {
	sum := sha256.Sum256(contents)
	cacheKey := path + "@" + hex.EncodeToString(sum[:])

	useCache := viper.GetBool(key.ScriptsCacheBytecode)
	if useCache {
		if proto, ok := compiled.Get(cacheKey); ok {
			return proto, nil
		}
	}

	chunk, err := parse.Parse(bytes.NewReader(contents), path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}

	if useCache {
		compiled.Add(cacheKey, proto)
	}
	return proto, nil
}

// PurgeCache drops every compiled script.
func PurgeCache() {
	compiled.Purge()
}
