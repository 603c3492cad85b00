package helper

import (
	"net"
	"net/http"
	"strings"
)

// 按可信度排序的客户端 IP 头（Nginx / Cloudflare / Akamai / Fastly / EC2）
var clientIPHeaders = []string{
	http.CanonicalHeaderKey("X-Real-IP"),
	http.CanonicalHeaderKey("CF-Connecting-IP"),
	http.CanonicalHeaderKey("True-Client-Ip"),
	http.CanonicalHeaderKey("Fastly-Client-Ip"),
	http.CanonicalHeaderKey("X-Client-IP"),
}

// 可能包含多个 IP 的转发头："client IP, proxy 1 IP, proxy 2 IP"
var forwardedHeaders = []string{
	http.CanonicalHeaderKey("X-Forwarded-For"),
	http.CanonicalHeaderKey("X-Original-Forwarded-For"),
	http.CanonicalHeaderKey("Forwarded-For"),
}

var cidrs []*net.IPNet

func init() {
	maxCidrBlocks := []string{
		"127.0.0.1/8",    // localhost
		"10.0.0.0/8",     // 24-bit block
		"172.16.0.0/12",  // 20-bit block
		"192.168.0.0/16", // 16-bit block
		"169.254.0.0/16", // link local address
		"::1/128",        // localhost IPv6
		"fc00::/7",       // unique local address IPv6
		"fe80::/10",      // link local address IPv6
	}

	cidrs = make([]*net.IPNet, len(maxCidrBlocks))
	for i, maxCidrBlock := range maxCidrBlocks {
		_, cidr, _ := net.ParseCIDR(maxCidrBlock)
		cidrs[i] = cidr
	}
}

// isPrivateAddress 判断是否属于私有网段
func isPrivateAddress(ip net.IP) bool {
	for i := range cidrs {
		if cidrs[i].Contains(ip) {
			return true
		}
	}
	return false
}

// validateAndCleanIP 验证并清理IP地址，过滤 0.0.0.0 / 回环地址
func validateAndCleanIP(ip string) (string, net.IP) {
	ip = strings.TrimSpace(ip)
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsUnspecified() || parsed.IsLoopback() {
		return "", nil
	}
	return ip, parsed
}

// ClientIP 获取客户端真实IP：优先各代理头中的公网地址，最后使用 RemoteAddr
func ClientIP(h http.Header, remoteAddr string) string {
	for _, name := range clientIPHeaders {
		if ip, parsed := validateAndCleanIP(h.Get(name)); ip != "" && !isPrivateAddress(parsed) {
			return ip
		}
	}
	for _, name := range forwardedHeaders {
		for _, addr := range strings.Split(h.Get(name), ",") {
			if ip, parsed := validateAndCleanIP(addr); ip != "" && !isPrivateAddress(parsed) {
				return ip
			}
		}
	}

	remoteIP := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteIP = host
	}
	if ip, _ := validateAndCleanIP(remoteIP); ip != "" {
		return ip
	}
	if remoteIP != "" {
		return remoteIP
	}
	return "unknown"
}
