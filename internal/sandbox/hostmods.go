package sandbox

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	_ "embed"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/netip"
	"path"
	"sort"
	"strings"

	"github.com/dop251/goja"
	nodeutil "github.com/dop251/goja_nodejs/util"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/GriffinCanCode/jsbox/internal/inspect"
)

//go:embed js/events.js
var eventsSource string

var eventsProgram = goja.MustCompile("events.js", eventsSource, true)

// hostModule builds a host module value inside a context.
type hostModule func(c *Context) (goja.Value, error)

func hostModules() map[string]hostModule {
	return map[string]hostModule{
		"events": eventsModule,
		"timers": func(c *Context) (goja.Value, error) { return c.timersModule() },
		"crypto": cryptoModule,
		"path":   pathModule,
		"util":   utilModule,
		"net":    netModule,
	}
}

// hostName strips the node: scheme host modules may be required with.
func hostName(name string) string {
	return strings.TrimPrefix(name, "node:")
}

func eventsModule(c *Context) (goja.Value, error) {
	return c.vm.RunProgram(eventsProgram)
}

var hashes = map[string]func() hash.Hash{
	"md5":      md5.New,
	"sha1":     sha1.New,
	"sha256":   sha256.New,
	"sha512":   sha512.New,
	"sha3-256": sha3.New256,
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
}

func cryptoModule(c *Context) (goja.Value, error) {
	vm := c.vm
	crypto := vm.NewObject()

	names := make([]string, 0, len(hashes))
	for name := range hashes {
		names = append(names, name)
	}
	sort.Strings(names)
	listed := make([]any, len(names))
	for i, name := range names {
		listed[i] = name
	}

	_ = crypto.Set("createHash", func(call goja.FunctionCall) goja.Value {
		alg := strings.ToLower(call.Argument(0).String())
		newHash, ok := hashes[alg]
		if !ok {
			c.throwError("Digest method not supported: "+alg, "ERR_CRYPTO_INVALID_DIGEST")
		}
		return c.newHash(newHash())
	})
	_ = crypto.Set("getHashes", func(goja.FunctionCall) goja.Value {
		return vm.NewArray(listed...)
	})
	_ = crypto.Set("randomUUID", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(uuid.NewString())
	})
	return crypto, nil
}

// newHash wraps h in an object with chaining update and a one-shot digest.
func (c *Context) newHash(h hash.Hash) *goja.Object {
	obj := c.vm.NewObject()
	finalized := false

	_ = obj.Set("update", func(call goja.FunctionCall) goja.Value {
		if finalized {
			c.throwError("Digest already called", "ERR_CRYPTO_HASH_FINALIZED")
		}
		h.Write([]byte(call.Argument(0).String()))
		return call.This
	})
	_ = obj.Set("digest", func(call goja.FunctionCall) goja.Value {
		if finalized {
			c.throwError("Digest already called", "ERR_CRYPTO_HASH_FINALIZED")
		}
		finalized = true
		sum := h.Sum(nil)

		encoding := "hex"
		if enc := call.Argument(0); !goja.IsUndefined(enc) {
			encoding = enc.String()
		}
		switch encoding {
		case "hex":
			return c.vm.ToValue(hex.EncodeToString(sum))
		case "base64":
			return c.vm.ToValue(base64.StdEncoding.EncodeToString(sum))
		case "base64url":
			return c.vm.ToValue(base64.RawURLEncoding.EncodeToString(sum))
		default:
			c.throwError("Unsupported digest encoding: "+encoding, "ERR_INVALID_ARG_VALUE")
			return nil
		}
	})
	return obj
}

func pathModule(c *Context) (goja.Value, error) {
	vm := c.vm
	p := vm.NewObject()

	_ = p.Set("sep", "/")
	_ = p.Set("delimiter", ":")
	_ = p.Set("join", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		joined := path.Join(parts...)
		if joined == "" {
			joined = "."
		}
		return vm.ToValue(joined)
	})
	_ = p.Set("normalize", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(path.Clean(call.Argument(0).String()))
	})
	_ = p.Set("basename", func(call goja.FunctionCall) goja.Value {
		base := path.Base(call.Argument(0).String())
		if ext := call.Argument(1); !goja.IsUndefined(ext) && ext.String() != base {
			base = strings.TrimSuffix(base, ext.String())
		}
		return vm.ToValue(base)
	})
	_ = p.Set("dirname", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(path.Dir(call.Argument(0).String()))
	})
	_ = p.Set("extname", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(path.Ext(call.Argument(0).String()))
	})
	_ = p.Set("isAbsolute", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(path.IsAbs(call.Argument(0).String()))
	})
	return p, nil
}

// utilModule takes format from goja_nodejs and adds inspect on top, backed
// by the context's reflector.
func utilModule(c *Context) (goja.Value, error) {
	vm := c.vm
	module := vm.NewObject()
	util := vm.NewObject()
	if err := module.Set("exports", util); err != nil {
		return nil, err
	}
	nodeutil.Require(vm, module)

	_ = util.Set("inspect", func(call goja.FunctionCall) goja.Value {
		depth := inspect.DefaultDepth
		if opts, ok := call.Argument(1).(*goja.Object); ok {
			if d, ok := c.dataProperty(opts, "depth").Export().(int64); ok {
				depth = int(d)
			}
		}
		return vm.ToValue(c.reflector.Inspect(call.Argument(0), depth))
	})
	return util, nil
}

func netModule(c *Context) (goja.Value, error) {
	vm := c.vm
	net := vm.NewObject()

	_ = net.Set("isIP", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(ipVersion(call.Argument(0).String()))
	})
	_ = net.Set("isIPv4", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(ipVersion(call.Argument(0).String()) == 4)
	})
	_ = net.Set("isIPv6", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(ipVersion(call.Argument(0).String()) == 6)
	})
	return net, nil
}

// ipVersion returns 4 or 6 for a textual address and 0 for anything else.
func ipVersion(s string) int {
	addr, err := netip.ParseAddr(s)
	switch {
	case err != nil:
		return 0
	case addr.Is4():
		return 4
	default:
		return 6
	}
}
