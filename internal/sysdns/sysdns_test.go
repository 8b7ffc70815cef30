package sysdns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResolvConf(t *testing.T) {
	data := []byte(`# Generated by NetworkManager
; another comment style
search corp.lan
nameserver 10.0.0.2
nameserver 8.8.8.8
nameserver
options edns0
`)
	assert.Equal(t, []string{"10.0.0.2", "8.8.8.8"}, parseResolvConf(data))
	assert.Nil(t, parseResolvConf([]byte("search lan\n")))
	assert.Nil(t, parseResolvConf(nil))
}

func TestParseScutilDNS(t *testing.T) {
	data := []byte(`DNS configuration

resolver #1
  search domain[0] : corp.lan
  nameserver[0] : 10.0.0.2
  nameserver[1] : 192.168.1.1
  if_index : 14 (en0)

resolver #2
  nameserver[0] : 8.8.8.8
`)
	assert.Equal(t, []string{"10.0.0.2", "192.168.1.1", "8.8.8.8"}, parseScutilDNS(data))
	assert.Nil(t, parseScutilDNS([]byte("DNS configuration\n")))
}

func TestOrder(t *testing.T) {
	got := order([]string{"8.8.8.8", "10.0.0.2", " 8.8.8.8 ", "not-an-ip", "127.0.0.53", "fd00::1"})
	assert.Equal(t, []string{"10.0.0.2", "127.0.0.53", "fd00::1", "8.8.8.8"}, got)

	assert.Nil(t, order(nil))
	assert.Nil(t, order([]string{"garbage"}))
}
