package httptestutil_test

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/ThalesGroup/mockinspect"
	"github.com/ThalesGroup/mockinspect/httptestutil"
)

func Example() {
	m := mockinspect.MustNew()
	ts := httptestutil.Serve(m)
	defer ts.Close()

	echo, _ := m.Mock(mockinspect.MockOptions{
		RequestPattern: "/echo",
		RequestMethod:  "POST",
		ResponseStatus: 201,
		ResponseBody:   "pong",
	})

	// inspect server traffic
	is := httptestutil.Inspect(ts)

	resp, _ := ts.Client().Post(ts.URL+"/echo", "text/plain", strings.NewReader("ping"))
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()

	ex := is.LastExchange()
	fmt.Println("server received: " + ex.RequestBody.String())
	fmt.Println("server sent: " + strconv.Itoa(ex.StatusCode))
	fmt.Println("server sent: " + ex.ResponseBody.String())
	fmt.Println("client received: " + string(body))
	fmt.Println(echo.ExpectMadeMatching(mockinspect.MatchInput{Payload: "ping"}))

	// Output:
	// server received: ping
	// server sent: 201
	// server sent: pong
	// client received: pong
	// <nil>
}
