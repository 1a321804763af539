package server

import (
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/internetbuilder/hive/libraries/encoding"
	"github.com/internetbuilder/hive/libraries/enforce"
)

// SocketListen listens on a unix socket when the address ends in .sock,
// otherwise on TCP.
func SocketListen(socket string) net.Listener {

	if strings.HasSuffix(socket, ".sock") {
		os.Remove(socket)
		unixListener, err := net.Listen("unix", socket)
		enforce.ENFORCE(err, "Listen failure (UNIX socket)", socket)
		err = os.Chmod(socket, 0777)
		enforce.ENFORCE(err)
		return unixListener
	} else {
		tcpListener, err := net.Listen("tcp", socket)
		enforce.ENFORCE(err, "Listen failure (TCP)", socket)
		return tcpListener
	}
}

// GetRequestParams returns the query-string parameters; the JSON body
// is decoded only when the query string is empty, and is ignored
// otherwise.
func GetRequestParams(r *http.Request) (map[string]interface{}, error) {
	ret := make(map[string]interface{}, 0)
	var err error
	for k := range r.URL.Query() {
		if len(r.URL.Query()[k]) == 1 {
			ret[k] = r.URL.Query()[k][0]
		} else {
			assn := make([]interface{}, len(r.URL.Query()[k]))
			for i, v := range r.URL.Query()[k] {
				assn[i] = v
			}
			ret[k] = assn
		}
	}
	if len(ret) == 0 {
		rdecoder := encoding.JSONiter.NewDecoder(r.Body)
		defer r.Body.Close()
		err = rdecoder.Decode(&ret)
		if err != nil && err.Error() == "EOF" {
			err = nil
		}
	}
	return ret, err
}
