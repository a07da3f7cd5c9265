package harness

const cppDriver = `#include <bits/stdc++.h>
using namespace std;

{{.UserCode}}

static string judge_line() {
    string s;
    if (!getline(cin, s)) return "";
    if (!s.empty() && s.back() == '\r') s.pop_back();
    return s;
}
static int judge_read_int() { return stoi(judge_line()); }
static long long judge_read_long() { return stoll(judge_line()); }
static double judge_read_double() { return stod(judge_line()); }
static bool judge_read_bool() { string s = judge_line(); return s == "true" || s == "1"; }
static string judge_read_string() { return judge_line(); }
static vector<int> judge_read_ints() {
    stringstream ss(judge_line());
    vector<int> v;
    int x;
    while (ss >> x) v.push_back(x);
    return v;
}
static vector<string> judge_read_words() {
    stringstream ss(judge_line());
    vector<string> v;
    string w;
    while (ss >> w) v.push_back(w);
    return v;
}
static vector<vector<int>> judge_read_matrix() {
    int n = judge_read_int();
    vector<vector<int>> m;
    for (int i = 0; i < n; i++) m.push_back(judge_read_ints());
    return m;
}
static void judge_print(int v) { cout << v << "\n"; }
static void judge_print(long v) { cout << v << "\n"; }
static void judge_print(long long v) { cout << v << "\n"; }
static void judge_print(double v) { cout << fixed << setprecision(5) << v << "\n"; }
static void judge_print(bool v) { cout << (v ? "true" : "false") << "\n"; }
static void judge_print(const string& v) { cout << v << "\n"; }
template <typename T>
static void judge_print(const vector<T>& v) {
    for (size_t i = 0; i < v.size(); i++) {
        if (i) cout << ' ';
        cout << v[i];
    }
    cout << "\n";
}
static void judge_print(const vector<vector<int>>& m) {
    for (const auto& row : m) judge_print(row);
}

int main() {
{{.Reads}}
{{.Call}}
    return 0;
}
`

const javaDriver = `import java.util.*;
import java.io.*;

{{.UserCode}}

public class Main {
    private static final BufferedReader IN = new BufferedReader(new InputStreamReader(System.in));
    private static final StringBuilder OUT = new StringBuilder();

    private static String line() throws IOException {
        String s = IN.readLine();
        return s == null ? "" : s;
    }
    private static String[] words() throws IOException {
        String s = line().trim();
        return s.isEmpty() ? new String[0] : s.split("\\s+");
    }
    static int readInt() throws IOException { return Integer.parseInt(line().trim()); }
    static long readLong() throws IOException { return Long.parseLong(line().trim()); }
    static double readDouble() throws IOException { return Double.parseDouble(line().trim()); }
    static boolean readBool() throws IOException {
        String s = line().trim();
        return s.equals("true") || s.equals("1");
    }
    static String readString() throws IOException { return line(); }
    static String[] readWords() throws IOException { return words(); }
    static int[] readInts() throws IOException {
        String[] w = words();
        int[] a = new int[w.length];
        for (int i = 0; i < w.length; i++) a[i] = Integer.parseInt(w[i]);
        return a;
    }
    static int[][] readMatrix() throws IOException {
        int n = readInt();
        int[][] m = new int[n][];
        for (int i = 0; i < n; i++) m[i] = readInts();
        return m;
    }

    static void print(int v) { OUT.append(v).append('\n'); }
    static void print(long v) { OUT.append(v).append('\n'); }
    static void print(double v) { OUT.append(String.format(Locale.ROOT, "%.5f", v)).append('\n'); }
    static void print(boolean v) { OUT.append(v ? "true" : "false").append('\n'); }
    static void print(String v) { OUT.append(v).append('\n'); }
    static void print(int[] v) {
        for (int i = 0; i < v.length; i++) {
            if (i > 0) OUT.append(' ');
            OUT.append(v[i]);
        }
        OUT.append('\n');
    }
    static void print(String[] v) { OUT.append(String.join(" ", v)).append('\n'); }
    static void print(int[][] m) { for (int[] row : m) print(row); }

    public static void main(String[] args) throws Exception {
{{.Reads}}
{{.Call}}
        System.out.print(OUT);
        System.out.flush();
    }
}
`

const javascriptDriver = `{{.UserCode}}

const judgeLines = require('fs').readFileSync(0, 'utf8').split('\n').map((l) => l.replace(/\r$/, ''));
let judgePos = 0;
const judgeLine = () => (judgePos < judgeLines.length ? judgeLines[judgePos++] : '');
const judgeWords = () => {
  const s = judgeLine().trim();
  return s === '' ? [] : s.split(/\s+/);
};
const judgeReadInt = () => parseInt(judgeLine().trim(), 10);
const judgeReadLong = () => Number(judgeLine().trim());
const judgeReadDouble = () => parseFloat(judgeLine().trim());
const judgeReadBool = () => {
  const s = judgeLine().trim();
  return s === 'true' || s === '1';
};
const judgeReadString = () => judgeLine();
const judgeReadInts = () => judgeWords().map(Number);
const judgeReadWords = () => judgeWords();
const judgeReadMatrix = () => {
  const n = judgeReadInt();
  const m = [];
  for (let i = 0; i < n; i++) m.push(judgeReadInts());
  return m;
};

{{.Reads}}
{{.Call}}
`
